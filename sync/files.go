package sync

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
)

type ConfigFile struct {
	Name   string
	Reader io.Reader
	Length int
}

// ConfigFiles locates the sync configuration files under Root in Files.
type ConfigFiles struct {
	Root  string
	Files fs.FS
}

func (cf ConfigFiles) MustFindRootConfigFile(filename string) (ConfigFile, error) {
	var result ConfigFile
	name := path.Join(cf.Root, filename)
	b, err := fs.ReadFile(cf.Files, name)
	if err == nil {
		result.Name = name
		result.Reader = bytes.NewReader(b)
		result.Length = len(b)
	}
	return result, err
}

// FindDefaultsConfigFile returns defaults.yaml, or an empty ConfigFile if there is none.
func (cf ConfigFiles) FindDefaultsConfigFile() (ConfigFile, error) {
	result, err := cf.MustFindRootConfigFile("defaults.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return ConfigFile{}, nil
	}
	return result, err
}

func (cf ConfigFiles) MustFindSyncConfigFile() (ConfigFile, error) {
	return cf.MustFindRootConfigFile("sync.yaml")
}
