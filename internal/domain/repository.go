package domain

import "context"

// JobRepository is the jobs collection of the durable store. Every call is atomic on its own.
type JobRepository interface {
	GetAll(ctx context.Context) ([]*Job, error)
	Put(ctx context.Context, job *Job) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// ImageRepository is the images collection of the durable store.
type ImageRepository interface {
	GetAll(ctx context.Context) ([]*Image, error)
	Get(ctx context.Context, id string) (*Image, error)
	Put(ctx context.Context, image *Image) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
