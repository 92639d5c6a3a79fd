package database

import (
	"context"

	"github.com/google/uuid"
)

const createBusiness = `-- name: CreateBusiness :one
INSERT INTO businesses (name)
VALUES ($1)
RETURNING id, name, created_at
`

func (q *Queries) CreateBusiness(ctx context.Context, name string) (Business, error) {
	row := q.db.QueryRow(ctx, createBusiness, name)
	var b Business
	err := row.Scan(&b.ID, &b.Name, &b.CreatedAt)
	return b, err
}

const getBusiness = `-- name: GetBusiness :one
SELECT id, name, created_at
FROM businesses
WHERE id = $1
`

func (q *Queries) GetBusiness(ctx context.Context, id uuid.UUID) (Business, error) {
	row := q.db.QueryRow(ctx, getBusiness, id)
	var b Business
	err := row.Scan(&b.ID, &b.Name, &b.CreatedAt)
	return b, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (business_id, name, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, business_id, name, email, password_hash, role, created_at
`

type CreateUserParams struct {
	BusinessID   uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.BusinessID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
	)
	var u User
	err := row.Scan(&u.ID, &u.BusinessID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, business_id, name, email, password_hash, role, created_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(&u.ID, &u.BusinessID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}
