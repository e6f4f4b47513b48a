package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"meridian.org/internal/authz"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ authz.Store = (*Store)(nil)

func (s *Store) CreateOrgNode(ctx context.Context, node authz.OrgNode) (authz.OrgNode, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into org_nodes(code, manager_code, status, principal_id, created_at, updated_at)
		values ($1, $2, $3, $4, now(), now())
		returning created_at, updated_at
	`, node.Code, nullablePtr(node.ManagerCode), node.Status, nullIfEmpty(node.PrincipalID)).Scan(&node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.OrgNode{}, fmt.Errorf("%w: org code %s already exists", authz.ErrIntegrity, node.Code)
			case pgErrForeignKeyViolation:
				return authz.OrgNode{}, fmt.Errorf("%w: manager code does not exist", authz.ErrIntegrity)
			}
		}
		return authz.OrgNode{}, err
	}
	return node, nil
}

// DeleteOrgNode removes a node after re-pointing its direct reports at the
// node's own manager, so the reporting chain stays connected.
func (s *Store) DeleteOrgNode(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var manager sql.NullString
	err = tx.QueryRowContext(ctx, `select manager_code from org_nodes where code = $1 for update`, code).Scan(&manager)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update org_nodes set manager_code = $1, updated_at = now() where manager_code = $2
	`, manager, code); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from org_nodes where code = $1`, code); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) OrgNodeByCode(ctx context.Context, code string) (authz.OrgNode, error) {
	return s.orgNodeWhere(ctx, `code = $1`, code)
}

func (s *Store) OrgNodeByPrincipal(ctx context.Context, principalID string) (authz.OrgNode, error) {
	return s.orgNodeWhere(ctx, `principal_id = $1`, principalID)
}

func (s *Store) orgNodeWhere(ctx context.Context, cond string, arg any) (authz.OrgNode, error) {
	var (
		node      authz.OrgNode
		manager   sql.NullString
		principal sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select code, manager_code, status, principal_id, created_at, updated_at
		from org_nodes
		where `+cond, arg).Scan(&node.Code, &manager, &node.Status, &principal, &node.CreatedAt, &node.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.OrgNode{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.OrgNode{}, err
	}
	if manager.Valid {
		mc := manager.String
		node.ManagerCode = &mc
	}
	node.PrincipalID = principal.String
	return node, nil
}

func (s *Store) DirectReports(ctx context.Context, managerCode string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select code from org_nodes where manager_code = $1 order by code
	`, managerCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *Store) SetManagerCode(ctx context.Context, code string, managerCode *string) error {
	res, err := s.db.ExecContext(ctx, `
		update org_nodes set manager_code = $1, updated_at = now() where code = $2
	`, nullablePtr(managerCode), code)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: manager code does not exist", authz.ErrIntegrity)
		}
		return err
	}
	return mustAffectRow(res)
}

func (s *Store) SetOrgNodePrincipal(ctx context.Context, code, principalID string) error {
	res, err := s.db.ExecContext(ctx, `
		update org_nodes set principal_id = $1, updated_at = now() where code = $2
	`, principalID, code)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: principal already linked to another org node", authz.ErrIntegrity)
		}
		return err
	}
	return mustAffectRow(res)
}

func (s *Store) CreateStaffIdentity(ctx context.Context, staff authz.StaffIdentity) (authz.StaffIdentity, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into staff_identities(id, display_name, principal_id, created_at)
		values ($1, $2, $3, now())
		returning created_at
	`, staff.ID, staff.DisplayName, nullIfEmpty(staff.PrincipalID)).Scan(&staff.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authz.StaffIdentity{}, fmt.Errorf("%w: staff identity conflict", authz.ErrIntegrity)
		}
		return authz.StaffIdentity{}, err
	}
	return staff, nil
}

func (s *Store) StaffByID(ctx context.Context, id string) (authz.StaffIdentity, error) {
	return s.staffWhere(ctx, `id = $1`, id)
}

func (s *Store) StaffByPrincipal(ctx context.Context, principalID string) (authz.StaffIdentity, error) {
	return s.staffWhere(ctx, `principal_id = $1`, principalID)
}

func (s *Store) staffWhere(ctx context.Context, cond string, arg any) (authz.StaffIdentity, error) {
	var (
		staff     authz.StaffIdentity
		principal sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, display_name, principal_id, created_at
		from staff_identities
		where `+cond, arg).Scan(&staff.ID, &staff.DisplayName, &principal, &staff.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.StaffIdentity{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.StaffIdentity{}, err
	}
	staff.PrincipalID = principal.String
	return staff, nil
}

func (s *Store) SetStaffPrincipal(ctx context.Context, id, principalID string) error {
	res, err := s.db.ExecContext(ctx, `
		update staff_identities set principal_id = $1 where id = $2
	`, principalID, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: principal already linked to another staff identity", authz.ErrIntegrity)
		}
		return err
	}
	return mustAffectRow(res)
}

func (s *Store) CreateTeam(ctx context.Context, team authz.Team) (authz.Team, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into teams(id, name, head_code, created_at)
		values ($1, $2, $3, now())
		returning created_at
	`, team.ID, team.Name, team.HeadCode).Scan(&team.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return authz.Team{}, fmt.Errorf("%w: head code does not exist", authz.ErrIntegrity)
		}
		return authz.Team{}, err
	}
	return team, nil
}

func (s *Store) TeamByID(ctx context.Context, id string) (authz.Team, error) {
	var team authz.Team
	err := s.db.QueryRowContext(ctx, `
		select id, name, head_code, created_at from teams where id = $1
	`, id).Scan(&team.ID, &team.Name, &team.HeadCode, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Team{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Team{}, err
	}
	return team, nil
}

func (s *Store) CreateDelegation(ctx context.Context, d authz.Delegation) (authz.Delegation, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into delegations(id, staff_id, org_code, active, assigned_at, created_by, notes)
		values ($1, $2, $3, $4, now(), $5, $6)
		returning assigned_at
	`, d.ID, d.StaffID, d.OrgCode, d.Active, nullIfEmpty(d.CreatedBy), d.Notes).Scan(&d.AssignedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.Delegation{}, fmt.Errorf("%w: active delegation already exists", authz.ErrIntegrity)
			case pgErrForeignKeyViolation:
				return authz.Delegation{}, fmt.Errorf("%w: staff or org reference does not exist", authz.ErrIntegrity)
			}
		}
		return authz.Delegation{}, err
	}
	return d, nil
}

func (s *Store) DelegationByID(ctx context.Context, id string) (authz.Delegation, error) {
	var (
		d         authz.Delegation
		createdBy sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, staff_id, org_code, active, assigned_at, created_by, notes
		from delegations
		where id = $1
	`, id).Scan(&d.ID, &d.StaffID, &d.OrgCode, &d.Active, &d.AssignedAt, &createdBy, &d.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Delegation{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Delegation{}, err
	}
	d.CreatedBy = createdBy.String
	return d, nil
}

func (s *Store) DeactivateDelegation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update delegations set active = false where id = $1
	`, id)
	if err != nil {
		return err
	}
	return mustAffectRow(res)
}

func (s *Store) ActiveDelegationsByStaff(ctx context.Context, staffID string) ([]authz.Delegation, error) {
	return s.activeDelegationsWhere(ctx, `staff_id = $1`, staffID)
}

func (s *Store) ActiveDelegationsByOrg(ctx context.Context, orgCode string) ([]authz.Delegation, error) {
	return s.activeDelegationsWhere(ctx, `org_code = $1`, orgCode)
}

func (s *Store) activeDelegationsWhere(ctx context.Context, cond string, arg any) ([]authz.Delegation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, staff_id, org_code, active, assigned_at, created_by, notes
		from delegations
		where active and `+cond+`
		order by id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authz.Delegation
	for rows.Next() {
		var (
			d         authz.Delegation
			createdBy sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.StaffID, &d.OrgCode, &d.Active, &d.AssignedAt, &createdBy, &d.Notes); err != nil {
			return nil, err
		}
		d.CreatedBy = createdBy.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func mustAffectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullablePtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
