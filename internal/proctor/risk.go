package proctor

import "github.com/SwiftTim/hub2/internal/model"

var riskTable = map[model.ActivityType]model.RiskLevel{
	model.ActivityTabSwitch:       model.RiskHigh,
	model.ActivityAppBackgrounded: model.RiskHigh,
	model.ActivityBackNavigation:  model.RiskHigh,
	model.ActivityCopyPaste:       model.RiskMedium,
	model.ActivityFullscreenExit:  model.RiskMedium,
	model.ActivityBlockedShortcut: model.RiskLow,
	model.ActivityRightClick:      model.RiskLow,

	model.ActivityAssessmentStarted:   model.RiskLow,
	model.ActivityAssessmentSubmitted: model.RiskLow,
}

// RiskFor returns the fixed risk level of an activity type. Unknown types are low.
func RiskFor(t model.ActivityType) model.RiskLevel {
	if lvl, ok := riskTable[t]; ok {
		return lvl
	}
	return model.RiskLow
}

// Alerting reports whether events of this level are broadcast to observers.
func Alerting(lvl model.RiskLevel) bool {
	return lvl == model.RiskHigh
}
