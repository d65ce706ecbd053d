package directory

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "directory user not found" }

type Repo interface {
	Upsert(ctx context.Context, user User) error
	GetBySysID(ctx context.Context, sysID string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	All(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}
