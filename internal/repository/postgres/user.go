package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cetzal/authcore/internal/domain"
	"github.com/cetzal/authcore/pkg/database"
	apperrors "github.com/cetzal/authcore/pkg/errors"
)

const userColumns = `id, username, first_name, last_name, email, age, password_hash, is_active, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and fills in its ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (username, first_name, last_name, email, age, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Age,
		u.PasswordHash,
		u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return duplicateUser(err, u)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "GetUserByEmail", query, email)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, key any) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	u, err = scanUser(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", fmt.Sprint(key))
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List returns users matching the filter, ordered by id, with the total count.
func (r *UserRepository) List(ctx context.Context, f domain.UserFilter) (users []domain.User, total int, err error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Username != "" {
		conditions = append(conditions, "username ILIKE "+arg(likePattern(f.Username)))
	}
	if f.Name != "" {
		conditions = append(conditions, "first_name ILIKE "+arg(likePattern(f.Name)))
	}
	if f.Email != "" {
		conditions = append(conditions, "email ILIKE "+arg(likePattern(f.Email)))
	}
	if f.Age != nil {
		conditions = append(conditions, "age = "+arg(*f.Age))
	}
	if f.Active != nil {
		conditions = append(conditions, "is_active = "+arg(*f.Active))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM users
		%s
		ORDER BY id
		LIMIT %s OFFSET %s`,
		userColumns, where, arg(limit), arg(f.Offset),
	)

	ctx, end := database.TraceQuery(ctx, "ListUsers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users = []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.Age,
			&u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, total, nil
}

// Update writes all mutable fields and refreshes UpdatedAt.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	query := `
		UPDATE users
		SET username = $1, first_name = $2, last_name = $3, email = $4, age = $5,
		    password_hash = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Age,
		u.PasswordHash,
		u.IsActive,
		u.ID,
	).Scan(&u.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NotFound("user", strconv.FormatInt(u.ID, 10))
	case database.IsUniqueViolation(err):
		return duplicateUser(err, u)
	case err != nil:
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM users WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteUser", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// ExistsByUsernameOrEmail reports whether the username or email is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	ctx, end := database.TraceQuery(ctx, "UserExists", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Age,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func duplicateUser(err error, u *domain.User) *apperrors.AppError {
	if strings.Contains(database.ConstraintName(err), "username") {
		return apperrors.AlreadyExists("user", "username", u.Username)
	}
	return apperrors.AlreadyExists("user", "email", u.Email)
}

// likePattern escapes LIKE wildcards in s and wraps it for substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
