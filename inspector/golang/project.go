package golang

import (
	"github.com/flowweaver/fw/inspector/graph"
	"github.com/flowweaver/fw/inspector/repository"
)

// InspectProject detects the project and repository around location and
// inspects every package under the repository root (or under location when
// no repository is found).
func (i *Inspector) InspectProject(location string) (*graph.Project, error) {
	detector := repository.New()
	project := &graph.Project{}
	if info, err := detector.DetectProject(location); err == nil {
		project.Name = info.Name
		project.Type = info.Type
		project.RootPath = info.RootPath
	}
	if info, err := detector.DetectRepository(location); err == nil {
		project.RepositoryURL = info.Origin
		if info.Root != "" {
			location = info.Root
		}
	}

	var err error
	if project.Packages, err = i.InspectPackages(location); err != nil {
		return nil, err
	}
	project.Init()

	return project, nil
}
