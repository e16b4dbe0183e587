package infraction

import (
	"testing"

	"grounded/model"

	"github.com/stretchr/testify/assert"
)

func TestComputeDaysLadderClamp(t *testing.T) {
	def := &model.InfractionDef{Days: 0, LadderJSON: "[1,3,7]"}

	tests := []struct {
		strikeAfter int
		want        int
	}{
		{1, 1},
		{2, 3},
		{3, 7},
		{4, 7}, // escalation caps at the last rung
		{10, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, computeDays(def, tt.strikeAfter), "strikeAfter=%d", tt.strikeAfter)
	}
}

func TestComputeDaysDropsNonPositiveLadderEntries(t *testing.T) {
	def := &model.InfractionDef{Days: 5, LadderJSON: "[0,-2,4]"}

	// Only the 4 survives filtering, so every strike lands on it.
	assert.Equal(t, 4, computeDays(def, 1))
	assert.Equal(t, 4, computeDays(def, 3))
}

func TestComputeDaysFallsBackToFlatDays(t *testing.T) {
	assert.Equal(t, 5, computeDays(&model.InfractionDef{Days: 5, LadderJSON: "[]"}, 1))
	assert.Equal(t, 5, computeDays(&model.InfractionDef{Days: 5}, 2))
	assert.Equal(t, 0, computeDays(&model.InfractionDef{Days: -3}, 1))
}

func TestComputeReviewDays(t *testing.T) {
	// Explicit review period wins.
	assert.Equal(t, 10, computeReviewDays(&model.InfractionDef{ReviewDays: 10}, 1))

	// Zero-day consequences need no review.
	assert.Equal(t, 0, computeReviewDays(&model.InfractionDef{}, 0))

	// Otherwise half the applied days, rounded up, minimum one.
	assert.Equal(t, 1, computeReviewDays(&model.InfractionDef{}, 1))
	assert.Equal(t, 1, computeReviewDays(&model.InfractionDef{}, 2))
	assert.Equal(t, 2, computeReviewDays(&model.InfractionDef{}, 3))
	assert.Equal(t, 4, computeReviewDays(&model.InfractionDef{}, 7))
}

func TestEscalationSequence(t *testing.T) {
	def := &model.InfractionDef{Mode: model.ModeAdd, Days: 0, LadderJSON: "[1,3,7]"}

	wantDays := []int{1, 3, 7, 7}
	wantReview := []int{1, 2, 4, 4}
	for i := 0; i < 4; i++ {
		days := computeDays(def, i+1)
		assert.Equal(t, wantDays[i], days, "application %d", i+1)
		assert.Equal(t, wantReview[i], computeReviewDays(def, days), "application %d", i+1)
	}
}
