package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
)

func TestProfileRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	require.NoError(t, repos.Profiles.Create(ctx, models.NewProfile(uuid.New(), "a@rcfms.org", "W-1", "A", models.RoleSocialStaff)))

	err := repos.Profiles.Create(ctx, models.NewProfile(uuid.New(), "A@rcfms.org", "W-2", "A2", models.RoleSocialStaff))
	var dup *repositories.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field())

	err = repos.Profiles.Create(ctx, models.NewProfile(uuid.New(), "b@rcfms.org", "W-1", "B", models.RoleSocialStaff))
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "work_id", dup.Field())
}

func TestProfileRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	id := uuid.New()
	require.NoError(t, repos.Profiles.Create(ctx, models.NewProfile(id, "a@rcfms.org", "W-1", "A", models.RoleSocialStaff)))

	p, err := repos.Profiles.GetByID(ctx, id)
	require.NoError(t, err)
	p.IsActive = false
	*p.Unit = models.UnitMedical

	again, err := repos.Profiles.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.IsActive)
	assert.Equal(t, models.UnitSocial, *again.Unit)
}

func TestProfileRepository_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	zed := models.NewProfile(uuid.New(), "z@rcfms.org", "W-z", "Zed", models.RoleMedicalStaff)
	amy := models.NewProfile(uuid.New(), "a@rcfms.org", "W-a", "Amy", models.RoleMedicalHead)
	bob := models.NewProfile(uuid.New(), "b@rcfms.org", "W-b", "Bob", models.RoleSocialStaff)
	gone := models.NewProfile(uuid.New(), "g@rcfms.org", "W-g", "Gus", models.RoleMedicalStaff)
	gone.IsActive = false
	for _, p := range []*models.Profile{zed, amy, bob, gone} {
		require.NoError(t, repos.Profiles.Create(ctx, p))
	}

	all, err := repos.Profiles.List(ctx, repositories.ProfileFilter{})
	require.NoError(t, err)
	names := []string{}
	for _, p := range all {
		names = append(names, p.FullName)
	}
	assert.Equal(t, []string{"Amy", "Bob", "Gus", "Zed"}, names)

	medical := models.UnitMedical
	active, err := repos.Profiles.List(ctx, repositories.ProfileFilter{Unit: &medical, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Amy", active[0].FullName)
	assert.Equal(t, "Zed", active[1].FullName)
}

func TestProfileRepository_UpdateMissing(t *testing.T) {
	repos := NewStore().Repositories()
	err := repos.Profiles.Update(context.Background(), models.NewProfile(uuid.New(), "x@rcfms.org", "W-x", "X", models.RoleRehabStaff))
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestTransactionManager_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	tm := store.TransactionManager()
	id := uuid.New()

	err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		require.NoError(t, repos.Identities.Create(ctx, &models.Identity{ID: id, Email: "t@rcfms.org", PasswordHash: "h"}))
		return errors.New("profile insert failed")
	})
	require.Error(t, err)

	_, err = repos.Identities.GetByID(ctx, id)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestTransactionManager_Commit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	tm := store.TransactionManager()
	id := uuid.New()

	err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		if err := repos.Identities.Create(ctx, &models.Identity{ID: id, Email: "t@rcfms.org", PasswordHash: "h"}); err != nil {
			return err
		}
		return repos.Profiles.Create(ctx, models.NewProfile(id, "t@rcfms.org", "W-t", "T", models.RoleSocialStaff))
	})
	require.NoError(t, err)

	n, err := repos.Profiles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransactionManager_NestedRejected(t *testing.T) {
	store := NewStore()
	tm := store.TransactionManager()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		_, err := tm.Begin(ctx)
		return err
	})
	assert.ErrorContains(t, err, "nested")
}

func TestTransactionManager_ConcurrentUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	tm := store.TransactionManager()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := uuid.New()
			err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
				if err := repos.Identities.Create(ctx, &models.Identity{ID: id, Email: fmt.Sprintf("u%d@rcfms.org", i), PasswordHash: "h"}); err != nil {
					return err
				}
				return repos.Profiles.Create(ctx, models.NewProfile(id, fmt.Sprintf("u%d@rcfms.org", i), "W-SAME", "Same", models.RoleSocialStaff))
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repositories.ErrDuplicate):
				dups++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dups)

	// Losing transactions left no orphan identities behind.
	for i := 0; i < workers; i++ {
		identity, err := repos.Identities.GetByEmail(ctx, fmt.Sprintf("u%d@rcfms.org", i))
		if err == nil {
			_, perr := repos.Profiles.GetByID(ctx, identity.ID)
			assert.NoError(t, perr)
		}
	}
}

func TestAuditRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	actor := uuid.New()
	base := time.Now().UTC()

	for i, id := range []string{"01A", "01B", "01C"} {
		entry := models.NewAuditLog(id, actor, models.AuditActionUpdateUser, models.TableProfiles, "r")
		entry.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repos.AuditLogs.Insert(ctx, entry))
	}
	same := models.NewAuditLog("01D", actor, models.AuditActionUpdateUser, models.TableProfiles, "r")
	same.CreatedAt = base.Add(2 * time.Second)
	require.NoError(t, repos.AuditLogs.Insert(ctx, same))

	logs, err := repos.AuditLogs.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "01D", logs[0].ID)
	assert.Equal(t, "01C", logs[1].ID)

	rest, err := repos.AuditLogs.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "01B", rest[0].ID)
	assert.Equal(t, "01A", rest[1].ID)

	empty, err := repos.AuditLogs.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	tail, err := repos.AuditLogs.List(ctx, math.MaxInt, 3)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "01A", tail[0].ID)

	clamped, err := repos.AuditLogs.List(ctx, 1, -50)
	require.NoError(t, err)
	require.Len(t, clamped, 1)
	assert.Equal(t, "01D", clamped[0].ID)

	n, err := repos.AuditLogs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
