package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contacts_service/internal/config"
	"contacts_service/internal/models"
	"contacts_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresRepo struct {
	pool Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func NewWithPool(pool Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// * SaveUser relies on the UNIQUE(username) constraint to reject duplicates.
func (r *PostgresRepo) SaveUser(ctx context.Context, username string, passHash []byte) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, username, string(passHash)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) User(ctx context.Context, username string) (models.User, error) {
	const op = "storage.postgres.User"

	query := `
		SELECT id, username, password_hash
		FROM users
		WHERE username = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, username), op)
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT id, username, password_hash
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id), op)
}

func (r *PostgresRepo) scanUser(row pgx.Row, op string) (models.User, error) {
	var u models.User

	err := row.Scan(&u.ID, &u.Username, &u.PassHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) SaveContact(ctx context.Context, userID int64, name, phone string) (models.Contact, error) {
	const op = "storage.postgres.SaveContact"

	query := `
		INSERT INTO contacts (user_id, name, phone)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, phone;
	`

	c, err := scanContact(r.pool.QueryRow(ctx, query, userID, name, phone))
	if err != nil {
		return models.Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func (r *PostgresRepo) Contacts(ctx context.Context, userID int64) ([]models.Contact, error) {
	const op = "storage.postgres.Contacts"

	query := `
		SELECT id, user_id, name, phone
		FROM contacts
		WHERE user_id = $1
		ORDER BY id;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0)

	for rows.Next() {
		var c models.Contact

		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return contacts, nil
}

// * UpdateContact only touches a row owned by userID; anything else is ErrContactNotFound.
func (r *PostgresRepo) UpdateContact(ctx context.Context, userID, id int64, name, phone string) (models.Contact, error) {
	const op = "storage.postgres.UpdateContact"

	query := `
		UPDATE contacts
		SET name = $1, phone = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, user_id, name, phone;
	`

	c, err := scanContact(r.pool.QueryRow(ctx, query, name, phone, id, userID))
	if err != nil {
		return models.Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func (r *PostgresRepo) DeleteContact(ctx context.Context, userID, id int64) (models.Contact, error) {
	const op = "storage.postgres.DeleteContact"

	query := `
		DELETE FROM contacts
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, phone;
	`

	c, err := scanContact(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return models.Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

func scanContact(row pgx.Row) (models.Contact, error) {
	var c models.Contact

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Contact{}, storage.ErrContactNotFound
	}

	return c, err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// * dsn builds the connection string from the postgres section of the config.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
