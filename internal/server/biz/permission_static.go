package biz

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/looplj/approvalhub/internal/objects"
)

// staticGrantStore serves grants from a YAML file loaded once at
// startup. Writes are rejected; edit the file and restart instead.
type staticGrantStore struct {
	// edges maps relation -> subject -> objects.
	edges map[string]map[string][]string
}

type staticGrantsFile struct {
	Grants []staticGrantEntry `yaml:"grants"`
}

type staticGrantEntry struct {
	Subject  string `yaml:"subject"`
	Relation string `yaml:"relation"`
	// Objects accepts a list or a single space-separated string.
	Objects any `yaml:"objects"`
}

func loadStaticGrants(fs afero.Fs, path string) (*staticGrantStore, error) {
	if path == "" {
		return nil, fmt.Errorf("static backend requires static_path")
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read grants file: %w", err)
	}

	var file staticGrantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse grants file: %w", err)
	}

	store := &staticGrantStore{edges: map[string]map[string][]string{}}

	for i, entry := range file.Grants {
		if entry.Subject == "" || entry.Relation == "" {
			return nil, fmt.Errorf("grant %d: subject and relation are required", i)
		}

		values, err := cast.ToStringSliceE(entry.Objects)
		if err != nil {
			return nil, fmt.Errorf("grant %d: objects: %w", i, err)
		}

		subjects := store.edges[entry.Relation]
		if subjects == nil {
			subjects = map[string][]string{}
			store.edges[entry.Relation] = subjects
		}

		subjects[entry.Subject] = append(subjects[entry.Subject], values...)
	}

	return store, nil
}

func (s *staticGrantStore) RelatedSubjects(_ context.Context, subjectGUID, relation string) ([]string, error) {
	values := s.edges[relation][subjectGUID]

	// Callers get their own copy; the loaded table never changes.
	out := make([]string, len(values))
	copy(out, values)

	return out, nil
}

func (s *staticGrantStore) List(ctx context.Context, subject, relation string) ([]string, error) {
	return s.RelatedSubjects(ctx, subject, relation)
}

func (s *staticGrantStore) Grant(context.Context, string, string, string) error {
	return ErrReadOnlyBackend
}

func (s *staticGrantStore) Revoke(context.Context, string, string, string) error {
	return ErrReadOnlyBackend
}

func (s *staticGrantStore) Snapshot(context.Context) ([]objects.GrantInfo, error) {
	var grants []objects.GrantInfo

	for relation, subjects := range s.edges {
		for subject, values := range subjects {
			for _, v := range values {
				grants = append(grants, objects.GrantInfo{SubjectGUID: subject, Relation: relation, ObjectGUID: v})
			}
		}
	}

	return grants, nil
}
