package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"student-records/internal/domain"
	"student-records/internal/idseq"
	"student-records/internal/testutil"
)

func newRepo(t *testing.T) *StudentRepo {
	t.Helper()
	return repoOn(testutil.DB(t))
}

func repoOn(db *gorm.DB) *StudentRepo {
	return NewStudentRepo(db, idseq.New(db, zap.NewNop()), zap.NewNop())
}

func newStudent(mobile string) *domain.Student {
	return &domain.Student{
		FirstName:   "Asha",
		LastName:    "Rao",
		Mobile:      mobile,
		DateOfBirth: time.Date(2015, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:      domain.StatusActive,
		Extra:       map[string]any{"house": "blue"},
	}
}

func TestRegisterAssignsIDAndVersionZero(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	s, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.Equal(t, "STU-2025-00001", s.StudentID)
	assert.EqualValues(t, 0, s.Version)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := r.FindByStudentID(ctx, "STU-2025-00001")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "blue", got.Extra["house"])
}

func TestRegisterDuplicateMobile(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)

	_, err = r.Register(ctx, newStudent("9876543210"), 2025)
	require.ErrorIs(t, err, domain.ErrDuplicateField)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "mobile", de.Field)

	// 失败注册随事务回滚，序号不前进
	s, err := r.Register(ctx, newStudent("9876543211"), 2025)
	require.NoError(t, err)
	assert.Equal(t, "STU-2025-00002", s.StudentID)
}

func TestUpdateVersionCheck(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	s, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)

	s.FirstName = "Meera"
	upd, err := r.Update(ctx, s, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, upd.Version)
	assert.Equal(t, "Meera", upd.FirstName)

	s.FirstName = "Lost"
	_, err = r.Update(ctx, s, 0)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.EqualValues(t, 0, de.Expected)
	assert.EqualValues(t, 1, de.Actual)

	got, err := r.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meera", got.FirstName)
	assert.EqualValues(t, 1, got.Version)
}

func TestUpdateRestrictedColumns(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	s, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)

	s.Status = domain.StatusGraduated
	s.FirstName = "Ignored"
	upd, err := r.Update(ctx, s, 0, "status")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGraduated, upd.Status)
	assert.Equal(t, "Asha", upd.FirstName)

	_, err = r.Update(ctx, s, 1, "studentId")
	assert.Error(t, err)
}

func TestUpdateNotFound(t *testing.T) {
	r := newRepo(t)
	s := newStudent("9876543210")
	s.ID = 404
	_, err := r.Update(context.Background(), s, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDuplicateMobileLeavesRowUntouched(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	a, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)
	_, err = r.Register(ctx, newStudent("9876543211"), 2025)
	require.NoError(t, err)

	a.Mobile = "9876543211"
	a.FirstName = "Changed"
	_, err = r.Update(ctx, a, 0)
	require.ErrorIs(t, err, domain.ErrDuplicateField)

	got, err := r.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.FirstName)
	assert.Equal(t, "9876543210", got.Mobile)
	assert.EqualValues(t, 0, got.Version)
}

func TestConcurrentUpdatesSameVersionOneWins(t *testing.T) {
	assertOneWriterWins(t, newRepo(t))
}

func TestConcurrentUpdatesSameVersionOneWins_Postgres(t *testing.T) {
	assertOneWriterWins(t, repoOn(testutil.Postgres(t)))
}

func assertOneWriterWins(t *testing.T, r *StudentRepo) {
	t.Helper()
	ctx := context.Background()
	s, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)

	const n = 8
	var (
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			cand := *s
			cand.LastName = "Writer"
			_, err := r.Update(ctx, &cand, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domain.KindOf(err) == domain.KindVersionConflict:
				conflicts++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	got, err := r.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Version)
}

func TestFindAndExists(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	s, err := r.Register(ctx, newStudent("9876543210"), 2025)
	require.NoError(t, err)

	got, err := r.FindByMobile(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = r.FindByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := r.ExistsByMobileExcluding(ctx, "9876543210", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = r.ExistsByMobileExcluding(ctx, "9876543210", s.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestList(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for _, m := range []string{"9000000001", "9000000002", "9000000003"} {
		_, err := r.Register(ctx, newStudent(m), 2025)
		require.NoError(t, err)
	}
	s, err := r.FindByMobile(ctx, "9000000002")
	require.NoError(t, err)
	s.Status = domain.StatusInactive
	_, err = r.Update(ctx, s, 0, "status")
	require.NoError(t, err)

	items, total, err := r.List(ctx, domain.ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "9000000003", items[0].Mobile)

	items, total, err = r.List(ctx, domain.ListQuery{Limit: 10, Status: domain.StatusInactive})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "9000000002", items[0].Mobile)
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	r := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.FindByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
