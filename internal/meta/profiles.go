package meta

import (
	"quantmind/internal/bandit"
	"quantmind/internal/policy"
)

// Profile fixes the risk posture of one specialized learner. Profiles differ
// in rails, exploration, and learning rate; the learning algorithms are
// identical.
type Profile struct {
	Name   string        `yaml:"name"`
	Bandit bandit.Config `yaml:"bandit"`
	Policy policy.Config `yaml:"policy"`
}

// DefaultProfiles returns the shipped specialist set: a conservative
// low-size slow-learner, the balanced default, and an aggressive wide-rail
// fast-learner. Different regimes reward different postures; the selector
// learns which to trust where.
func DefaultProfiles() []Profile {
	conservative := policy.DefaultConfig()
	conservative.Sigma = 0.4
	conservative.LearningRate = 0.01
	conservative.Bounds = policy.Bounds{
		PositionPctMin: 0.005,
		PositionPctMax: 0.04,
		HoldHoursMin:   12,
		HoldHoursMax:   360,
		StopPctMin:     0.01,
		StopPctMax:     0.06,
		TargetPctMin:   0.02,
		TargetPctMax:   0.15,
	}

	balanced := policy.DefaultConfig()

	aggressive := policy.DefaultConfig()
	aggressive.Sigma = 0.9
	aggressive.LearningRate = 0.04
	aggressive.Bounds = policy.Bounds{
		PositionPctMin: 0.01,
		PositionPctMax: 0.20,
		HoldHoursMin:   2,
		HoldHoursMax:   120,
		StopPctMin:     0.02,
		StopPctMax:     0.25,
		TargetPctMin:   0.04,
		TargetPctMax:   0.60,
	}

	slowBandit := bandit.DefaultConfig()
	slowBandit.EvidenceCap = 400

	fastBandit := bandit.DefaultConfig()
	fastBandit.EvidenceCap = 100

	return []Profile{
		{Name: "conservative", Bandit: slowBandit, Policy: conservative},
		{Name: "balanced", Bandit: bandit.DefaultConfig(), Policy: balanced},
		{Name: "aggressive", Bandit: fastBandit, Policy: aggressive},
	}
}
