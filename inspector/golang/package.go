package golang

import (
	"fmt"
	"go/parser"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowweaver/fw/inspector/graph"
	"github.com/flowweaver/fw/inspector/repository"
)

// InspectPackage inspects a single Go package directory (no recursion).
func (i *Inspector) InspectPackage(packagePath string) (*graph.Package, error) {
	absPath, err := filepath.Abs(packagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	pkg := &graph.Package{ImportPath: getImportPath(absPath)}

	pkgFiles, assets, err := i.inspectSinglePackage(absPath)
	if err != nil {
		return nil, fmt.Errorf("error processing package in %s: %w", absPath, err)
	}
	if pkg.Name == "" && len(pkgFiles) > 0 {
		pkg.Name = pkgFiles[0].Package
	}
	pkg.FileSet = pkgFiles
	pkg.Assets = assets

	if len(pkg.FileSet) == 0 {
		return nil, fmt.Errorf("no Go files found in package: %s", packagePath)
	}
	return pkg, nil
}

// InspectPackages walks rootPath recursively, inspecting every directory
// that contains Go source as its own package.
func (i *Inspector) InspectPackages(rootPath string) ([]*graph.Package, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var packages []*graph.Package
	err = filepath.Walk(absPath, func(aPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		var exclusion []string
		if i.config.SkipTests {
			exclusion = []string{"_test.go"}
		}
		hasGoFiles, err := repository.HasFileWithSuffixes(aPath, []string{".go"}, exclusion)
		if err != nil {
			return err
		}
		if hasGoFiles {
			pkg, err := i.InspectPackage(aPath)
			if err != nil {
				return fmt.Errorf("error inspecting package in %s: %w", aPath, err)
			}
			packages = append(packages, pkg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking package directories: %w", err)
	}
	return packages, nil
}

func (i *Inspector) inspectSinglePackage(packageDir string) ([]*graph.File, []*graph.Asset, error) {
	var files []*graph.File

	pkgs, err := parser.ParseDir(i.fset, packageDir, func(info os.FileInfo) bool {
		if i.config.SkipTests && strings.HasSuffix(info.Name(), "_test.go") {
			return false
		}
		return true
	}, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse package: %w", err)
	}

	for _, pkg := range pkgs {
		for filename, file := range pkg.Files {
			src, err := os.ReadFile(filename)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read file %s: %w", filename, err)
			}
			i.src = src

			aFile, err := i.processFile(file, filename)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to process file %s: %w", filename, err)
			}
			files = append(files, aFile)
		}
	}

	var assets []*graph.Asset
	if !i.config.SkipAsset {
		assets, err = repository.ReadAssetsRecursively(packageDir, true, importPathForDir, "go")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read assets: %w", err)
		}
	}
	return files, assets, nil
}
