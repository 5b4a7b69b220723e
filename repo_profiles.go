package appauth

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfilesRepository is the full bun-backed surface for the profiles table.
// The narrow Profiles interface is what the bootstrapper and operations
// consume; the Tx variants exist for callers composing larger transactions.
type ProfilesRepository interface {
	Profiles

	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error)
	InsertTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error)
	UpdateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, changes ProfileUpdate) (*Profile, error)
}

type profiles struct {
	repo repository.Repository[*Profile]
	db   *bun.DB
}

var _ ProfilesRepository = (*profiles)(nil)

// NewProfilesRepository returns a Profiles store backed by db.
func NewProfilesRepository(db *bun.DB) ProfilesRepository {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		repo: repo,
		db:   db,
	}
}

func (r *profiles) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *profiles) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error) {
	return r.repo.GetByIDTx(ctx, tx, id.String())
}

func (r *profiles) Insert(ctx context.Context, profile *Profile) (*Profile, error) {
	return r.InsertTx(ctx, r.db, profile)
}

func (r *profiles) InsertTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error) {
	prepareProfileDefaults(profile)
	return r.repo.CreateTx(ctx, tx, profile)
}

func (r *profiles) Update(ctx context.Context, id uuid.UUID, changes ProfileUpdate) (*Profile, error) {
	return r.UpdateTx(ctx, r.db, id, changes)
}

// UpdateTx is a read-modify-write: untouched columns keep their values, and
// updating a missing row surfaces the repository's not-found error.
func (r *profiles) UpdateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, changes ProfileUpdate) (*Profile, error) {
	record, err := r.repo.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, err
	}

	changes.Apply(record)
	now := time.Now()
	record.UpdatedAt = &now

	return r.repo.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}
