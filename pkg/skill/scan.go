package skill

import (
	"os"
	"path/filepath"
	"strings"
)

// Summary is the lightweight {name, description} projection ScanSkillSummaries
// reads without paying for full DAG validation.
type Summary struct {
	Name        string
	Description string
	Path        string
}

// ScanSkillFiles enumerates *.yaml/*.yml files at the top level of
// builtInDir and, if non-empty, userDir, loading and validating each one.
// A user skill whose name field matches a built-in's shadows it (the
// built-in is not returned). Returns skills keyed by name.
func ScanSkillFiles(builtInDir, userDir string) (map[string]*Skill, error) {
	out := make(map[string]*Skill)

	if builtInDir != "" {
		if err := scanInto(builtInDir, out); err != nil {
			return nil, err
		}
	}
	if userDir != "" {
		if err := scanInto(userDir, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanInto(dir string, out map[string]*Skill) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &SkillLoadError{Path: dir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() || !isSkillFile(e.Name()) {
			continue
		}
		s, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		out[s.Name] = s
	}
	return nil
}

// ScanSkillSummaries is like ScanSkillFiles but reads only {name,
// description} and tolerates parse failures: a file that fails to parse
// contributes a Summary with Description "Failed to load" and Name set to
// the filename stem, rather than aborting the scan.
func ScanSkillSummaries(builtInDir, userDir string) ([]Summary, error) {
	byName := make(map[string]Summary)

	for _, dir := range []string{builtInDir, userDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &SkillLoadError{Path: dir, Err: err}
		}
		for _, e := range entries {
			if e.IsDir() || !isSkillFile(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

			data, err := os.ReadFile(path)
			if err != nil {
				byName[stem] = Summary{Name: stem, Description: "Failed to load", Path: path}
				continue
			}
			doc, err := ParseDocument(data)
			if err != nil || doc.Name == "" {
				byName[stem] = Summary{Name: stem, Description: "Failed to load", Path: path}
				continue
			}
			byName[doc.Name] = Summary{Name: doc.Name, Description: doc.Description, Path: path}
		}
	}

	out := make([]Summary, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	return out, nil
}

func isSkillFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
