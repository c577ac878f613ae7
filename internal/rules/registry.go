package rules

import "github.com/solarcraft/bosforge/internal/model"

// Registry returns the built-in detectors in their evaluation bands: vendor
// and utility-specific rules first, the APS interconnection ladder second,
// and the universal fallbacks last. The switchboard concatenates the bands
// and orders detectors by priority within the combined set.
func Registry(deps Deps) [][]*model.Detector {
	vendor := make([]*model.Detector, 0, 32)
	vendor = append(vendor, franklinDetectors()...)
	vendor = append(vendor, enphaseDetectors()...)
	vendor = append(vendor, storzDetector(deps))
	vendor = append(vendor, teslaDetectors(deps)...)
	vendor = append(vendor, pvOnlyDetectors()...)
	vendor = append(vendor, regionalDetectors(deps)...)
	vendor = append(vendor, acCoupledDetectors()...)
	vendor = append(vendor, dcCoupledDetectors()...)

	return [][]*model.Detector{
		vendor,
		apsGenericDetectors(),
		universalDetectors(),
	}
}
