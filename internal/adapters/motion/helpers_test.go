package motion_test

import "github.com/okian/ecotogether/internal/domain/model"

func verdictOf(valid bool, score int64) model.MotionVerdict {
	return model.MotionVerdict{IsValid: valid, MotionScore: score}
}
