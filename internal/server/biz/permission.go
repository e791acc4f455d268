package biz

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/spf13/afero"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
	"github.com/looplj/approvalhub/internal/pkg/xredis"
	"github.com/looplj/approvalhub/internal/pkg/xtime"
	"github.com/looplj/approvalhub/internal/scopes"
	"github.com/looplj/approvalhub/internal/server/db"
)

// PermissionsConfig selects and configures the grant backend.
type PermissionsConfig struct {
	// Backend is one of sql (default), redis or static.
	Backend string `conf:"backend" yaml:"backend" json:"backend"`

	// Redis configures the redis backend.
	Redis xredis.Config `conf:"redis" yaml:"redis" json:"redis"`

	// StaticPath points at the YAML grants file for the static backend.
	StaticPath string `conf:"static_path" yaml:"static_path" json:"static_path"`
}

// grantBackend is what a permission backend must provide. Management
// calls may return ErrReadOnlyBackend.
type grantBackend interface {
	scopes.Store

	Grant(ctx context.Context, subject, relation, object string) error
	Revoke(ctx context.Context, subject, relation, object string) error
	List(ctx context.Context, subject, relation string) ([]string, error)
	Snapshot(ctx context.Context) ([]objects.GrantInfo, error)
}

// orphanPruner is implemented by backends that can tell whether a
// grant still points at existing users.
type orphanPruner interface {
	PruneOrphans(ctx context.Context, batch int) (int, error)
}

type PermissionServiceParams struct {
	fx.In

	Config PermissionsConfig
	DB     *db.DB
	FS     afero.Fs
}

// PermissionService is the permission store scope resolution expands
// relations through, plus the owner-only management surface on top of
// it.
type PermissionService struct {
	backend grantBackend
}

func NewPermissionService(params PermissionServiceParams) (*PermissionService, error) {
	var (
		backend grantBackend
		err     error
	)

	switch params.Config.Backend {
	case "", "sql":
		backend = &sqlGrantStore{db: params.DB}
	case "redis":
		client, cerr := xredis.NewClient(params.Config.Redis)
		if cerr != nil {
			return nil, fmt.Errorf("permissions redis backend: %w", cerr)
		}

		backend = &redisGrantStore{client: client}
	case "static":
		backend, err = loadStaticGrants(params.FS, params.Config.StaticPath)
		if err != nil {
			return nil, fmt.Errorf("permissions static backend: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown permissions backend %q", params.Config.Backend)
	}

	return &PermissionService{backend: backend}, nil
}

// RelatedSubjects expands the relation for scope resolution. Never
// cached: every request observes the grants as they are now.
func (s *PermissionService) RelatedSubjects(ctx context.Context, subjectGUID, relation string) ([]string, error) {
	return s.backend.RelatedSubjects(ctx, subjectGUID, relation)
}

// Grant records a relation edge. Owner only.
func (s *PermissionService) Grant(ctx context.Context, input objects.GrantInfo) error {
	if err := authz.RequireOwner(ctx); err != nil {
		return err
	}

	if err := validateGrant(input); err != nil {
		return err
	}

	return s.backend.Grant(ctx, input.SubjectGUID, input.Relation, input.ObjectGUID)
}

// Revoke removes a relation edge. Owner only.
func (s *PermissionService) Revoke(ctx context.Context, input objects.GrantInfo) error {
	if err := authz.RequireOwner(ctx); err != nil {
		return err
	}

	if err := validateGrant(input); err != nil {
		return err
	}

	return s.backend.Revoke(ctx, input.SubjectGUID, input.Relation, input.ObjectGUID)
}

// ListGrants returns the subject's edges for one relation. Owner only.
func (s *PermissionService) ListGrants(ctx context.Context, subject, relation string) ([]objects.GrantInfo, error) {
	if err := authz.RequireOwner(ctx); err != nil {
		return nil, err
	}

	values, err := s.backend.List(ctx, subject, relation)
	if err != nil {
		return nil, err
	}

	grants := make([]objects.GrantInfo, 0, len(values))
	for _, v := range values {
		grants = append(grants, objects.GrantInfo{SubjectGUID: subject, Relation: relation, ObjectGUID: v})
	}

	return grants, nil
}

// Snapshot dumps every edge the backend holds, for backup export.
// Owner only; the backup worker runs under a system identity.
func (s *PermissionService) Snapshot(ctx context.Context) ([]objects.GrantInfo, error) {
	if err := authz.RequireOwner(ctx); err != nil {
		return nil, err
	}

	return s.backend.Snapshot(ctx)
}

// PruneOrphanedGrants deletes grants whose subject or object user no
// longer exists. Backends without user linkage (redis, static) report
// zero. Owner only; the retention worker runs under a system identity.
func (s *PermissionService) PruneOrphanedGrants(ctx context.Context, batch int) (int, error) {
	if err := authz.RequireOwner(ctx); err != nil {
		return 0, err
	}

	pruner, ok := s.backend.(orphanPruner)
	if !ok {
		return 0, nil
	}

	return pruner.PruneOrphans(ctx, batch)
}

func validateGrant(input objects.GrantInfo) error {
	if input.SubjectGUID == "" || input.Relation == "" || input.ObjectGUID == "" {
		return ErrInvalidGrant
	}

	return nil
}

// sqlGrantStore keeps grants in the grants table.
type sqlGrantStore struct {
	db *db.DB
}

type grantRow struct {
	id              int
	subject, object string
}

func (s *sqlGrantStore) RelatedSubjects(ctx context.Context, subjectGUID, relation string) ([]string, error) {
	return s.objectsFor(ctx, subjectGUID, relation)
}

func (s *sqlGrantStore) List(ctx context.Context, subject, relation string) ([]string, error) {
	return s.objectsFor(ctx, subject, relation)
}

func (s *sqlGrantStore) objectsFor(ctx context.Context, subject, relation string) ([]string, error) {
	sel := s.db.Builder().
		Select("object_guid").
		From(entsql.Table("grants")).
		Where(entsql.And(
			entsql.EQ("subject_guid", subject),
			entsql.EQ("relation", relation),
		)).
		OrderBy(entsql.Asc("id"))

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var values []string

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}

		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}

	return values, nil
}

func (s *sqlGrantStore) Grant(ctx context.Context, subject, relation, object string) error {
	query, args := s.db.Builder().
		Insert("grants").
		Columns("subject_guid", "relation", "object_guid", "created_at").
		Values(subject, relation, object, xtime.UTCNow()).
		OnConflict(
			entsql.ConflictColumns("subject_guid", "relation", "object_guid"),
			entsql.ResolveWithIgnore(),
		).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}

	return nil
}

func (s *sqlGrantStore) Revoke(ctx context.Context, subject, relation, object string) error {
	query, args := s.db.Builder().
		Delete("grants").
		Where(entsql.And(
			entsql.EQ("subject_guid", subject),
			entsql.EQ("relation", relation),
			entsql.EQ("object_guid", object),
		)).
		Query()

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}

	return nil
}

// PruneOrphans walks the grants table in id order and deletes every
// edge naming a user guid that is gone. The existence check is done in
// the application so the same code serves all three dialects.
func (s *sqlGrantStore) PruneOrphans(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}

	var (
		afterID int
		total   int
	)

	for {
		sel := s.db.Builder().
			Select("id", "subject_guid", "object_guid").
			From(entsql.Table("grants")).
			Where(entsql.GT("id", afterID)).
			OrderBy(entsql.Asc("id")).
			Limit(batch)

		rows, err := s.db.Query(ctx, sel)
		if err != nil {
			return total, fmt.Errorf("scan grants for orphans: %w", err)
		}

		var page []grantRow

		for rows.Next() {
			var r grantRow
			if err := rows.Scan(&r.id, &r.subject, &r.object); err != nil {
				rows.Close()
				return total, fmt.Errorf("scan grant row: %w", err)
			}

			page = append(page, r)
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return total, fmt.Errorf("scan grants for orphans: %w", err)
		}

		rows.Close()

		if len(page) == 0 {
			return total, nil
		}

		afterID = page[len(page)-1].id

		known, err := s.existingUsers(ctx, page)
		if err != nil {
			return total, err
		}

		var orphanIDs []any

		for _, r := range page {
			if !known[r.subject] || !known[r.object] {
				orphanIDs = append(orphanIDs, r.id)
			}
		}

		if len(orphanIDs) > 0 {
			query, args := s.db.Builder().
				Delete("grants").
				Where(entsql.In("id", orphanIDs...)).
				Query()

			if _, err := s.db.Exec(ctx, query, args...); err != nil {
				return total, fmt.Errorf("delete orphaned grants: %w", err)
			}

			total += len(orphanIDs)
		}

		if len(page) < batch {
			return total, nil
		}
	}
}

// existingUsers reports which guids referenced by the page still name
// a user.
func (s *sqlGrantStore) existingUsers(ctx context.Context, page []grantRow) (map[string]bool, error) {
	guids := make([]any, 0, len(page)*2)
	seen := make(map[string]bool, len(page)*2)

	for _, r := range page {
		for _, g := range []string{r.subject, r.object} {
			if !seen[g] {
				seen[g] = true

				guids = append(guids, g)
			}
		}
	}

	sel := s.db.Builder().
		Select("guid").
		From(entsql.Table("users")).
		Where(entsql.In("guid", guids...))

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query users for grants: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(guids))

	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("scan user guid: %w", err)
		}

		known[guid] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query users for grants: %w", err)
	}

	return known, nil
}

func (s *sqlGrantStore) Snapshot(ctx context.Context) ([]objects.GrantInfo, error) {
	sel := s.db.Builder().
		Select("subject_guid", "relation", "object_guid").
		From(entsql.Table("grants")).
		OrderBy(entsql.Asc("id"))

	rows, err := s.db.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("snapshot grants: %w", err)
	}
	defer rows.Close()

	var grants []objects.GrantInfo

	for rows.Next() {
		var g objects.GrantInfo
		if err := rows.Scan(&g.SubjectGUID, &g.Relation, &g.ObjectGUID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}

		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot grants: %w", err)
	}

	return grants, nil
}
