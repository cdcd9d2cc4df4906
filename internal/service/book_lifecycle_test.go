package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

func TestPlanTransitionTable(t *testing.T) {
	statuses := []models.BookStatus{models.BookStatusActive, models.BookStatusDeleted, models.BookStatusArchived}
	actions := []models.BookAction{models.BookActionDelete, models.BookActionRestore, models.BookActionArchive}
	legal := map[models.BookStatus]map[models.BookAction]models.BookStatus{
		models.BookStatusActive:  {models.BookActionDelete: models.BookStatusDeleted},
		models.BookStatusDeleted: {models.BookActionRestore: models.BookStatusActive, models.BookActionArchive: models.BookStatusArchived},
	}

	for _, status := range statuses {
		for _, action := range actions {
			status, action := status, action
			t.Run(string(status)+"_"+string(action), func(t *testing.T) {
				plan, err := planTransition(status, action)
				if to, ok := legal[status][action]; ok {
					require.NoError(t, err)
					assert.Equal(t, status, plan.From)
					assert.Equal(t, to, plan.To)
					return
				}
				require.Error(t, err)
				assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
				assert.Contains(t, err.Error(), string(action))
			})
		}
	}
}

func TestPlanTransitionUnknownAction(t *testing.T) {
	_, err := planTransition(models.BookStatusActive, models.BookAction("purge"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = expectedSource(models.BookAction("purge"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExpectedSource(t *testing.T) {
	from, err := expectedSource(models.BookActionArchive)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusDeleted, from)
}

func TestEnsureEditable(t *testing.T) {
	assert.NoError(t, ensureEditable(models.BookStatusActive, "update"))
	err := ensureEditable(models.BookStatusDeleted, "update")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Contains(t, err.Error(), "deleted")
}
