package graph

import (
	"path/filepath"
	"strings"
)

// Project represents a code project with multiple packages.
type Project struct {
	Name          string
	Type          string
	RootPath      string
	RepositoryURL string
	Packages      []*Package

	packageMap map[string]int
}

func (p *Project) AddPackage(pkg *Package) {
	p.Packages = append(p.Packages, pkg)
	if p.packageMap == nil {
		p.packageMap = make(map[string]int)
	}
	p.packageMap[pkg.Name] = len(p.Packages) - 1
}

// GetPackage retrieves a package by name.
func (p *Project) GetPackage(name string) *Package {
	if p.Packages == nil {
		return nil
	}
	if idx, ok := p.packageMap[name]; ok && idx < len(p.Packages) {
		return p.Packages[idx]
	}
	return nil
}

// Init normalizes file paths to be relative to the project root.
func (p *Project) Init() {
	if p.RootPath == "" {
		return
	}
	for _, pkg := range p.Packages {
		for _, file := range pkg.FileSet {
			if file.ImportPath == "" {
				file.ImportPath = pkg.ImportPath
			}
			if file.Path == "" {
				continue
			}
			relPath, err := filepath.Rel(p.RootPath, file.Path)
			if err != nil {
				continue
			}
			file.Name = filepath.Base(file.Path)
			file.Path = relPath
			if strings.HasSuffix(file.ImportPath, file.Name) {
				file.ImportPath, _ = filepath.Split(file.ImportPath)
				file.ImportPath = strings.TrimSuffix(file.ImportPath, "/")
			}
		}
		for _, asset := range pkg.Assets {
			if asset.Path == "" {
				continue
			}
			if relPath, err := filepath.Rel(p.RootPath, asset.Path); err == nil {
				asset.Name = filepath.Base(asset.Path)
				asset.Path = relPath
			}
		}
	}
}
