package populate

import (
	"fmt"

	"github.com/solarcraft/bosforge/internal/model"
)

// Per-section persistence schema. Each BOS section writes under its own
// legacy field scheme:
//
//	utility:  bos_sys{N}_type{P}_*           trigger sys{N}_stringCombiner, block PRE COMBINE
//	battery:  bos_sys{N}_battery1_type{P}_*  trigger sys{N}_battery1, block ESS, no _active
//	backup:   bos_sys{N}_backup_type{P}_*    trigger sys{N}_backup, block ESS
//	post-sms: post_sms_bos_sys{N}_type{P}_*  trigger sys{N}_postSMS, block POST COMBINE
//	combine:  postcombine_{P}_1_*            no system prefix, _existing instead of _is_new
type sectionSchema struct {
	fieldPrefix func(systemNumber, position int) string
	trigger     func(systemNumber int) string
	blockName   string
	hasActive   bool
	// Combine slots persist an inverted _existing flag instead of _is_new.
	usesExisting bool
}

var sectionSchemas = map[model.Section]sectionSchema{
	model.SectionUtility: {
		fieldPrefix: func(n, p int) string { return fmt.Sprintf("bos_sys%d_type%d", n, p) },
		trigger:     func(n int) string { return fmt.Sprintf("sys%d_stringCombiner", n) },
		blockName:   "PRE COMBINE",
		hasActive:   true,
	},
	model.SectionBattery: {
		fieldPrefix: func(n, p int) string { return fmt.Sprintf("bos_sys%d_battery1_type%d", n, p) },
		trigger:     func(n int) string { return fmt.Sprintf("sys%d_battery1", n) },
		blockName:   "ESS",
	},
	model.SectionBackup: {
		fieldPrefix: func(n, p int) string { return fmt.Sprintf("bos_sys%d_backup_type%d", n, p) },
		trigger:     func(n int) string { return fmt.Sprintf("sys%d_backup", n) },
		blockName:   "ESS",
		hasActive:   true,
	},
	model.SectionPostSMS: {
		fieldPrefix: func(n, p int) string { return fmt.Sprintf("post_sms_bos_sys%d_type%d", n, p) },
		trigger:     func(n int) string { return fmt.Sprintf("sys%d_postSMS", n) },
		blockName:   "POST COMBINE",
		hasActive:   true,
	},
	model.SectionCombine: {
		fieldPrefix:  func(_, p int) string { return fmt.Sprintf("postcombine_%d_1", p) },
		usesExisting: true,
	},
}

// systemNumberFor extracts the subsystem number from an item's prefix,
// falling back to the request's system for unprefixed non-combine items.
func systemNumberFor(item model.Item, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(item.SystemPrefix, "sys%d_", &n); err == nil && n >= 1 && n <= 4 {
		return n
	}
	return fallback
}

// encodeItem appends one item's persistence fields to the payload.
func encodeItem(payload map[string]any, item model.Item, fallbackSystem int) {
	schema, ok := sectionSchemas[item.Section]
	if !ok {
		return
	}

	systemNumber := systemNumberFor(item, fallbackSystem)
	prefix := schema.fieldPrefix(systemNumber, item.Position)

	payload[prefix+"_equipment_type"] = item.EquipmentType
	payload[prefix+"_make"] = item.Make
	payload[prefix+"_model"] = item.Model
	payload[prefix+"_amp_rating"] = item.AmpRating

	if schema.usesExisting {
		payload[prefix+"_existing"] = !item.IsNew
		payload[prefix+"_position"] = "POST COMBINE"
		// Combine slots surface on the shared equipment page; the active
		// flag makes them visible there.
		payload[prefix+"_active"] = true
		return
	}

	payload[prefix+"_is_new"] = item.IsNew
	if schema.hasActive {
		payload[prefix+"_active"] = true
	}
	payload[prefix+"_trigger"] = schema.trigger(systemNumber)
	payload[prefix+"_block_name"] = schema.blockName
}

// buildPayload flattens the resolved equipment into the field-value map the
// project writer persists. Items carry their own subsystem so multi-system
// matches distribute correctly.
func buildPayload(items []model.Item, fallbackSystem int) map[string]any {
	payload := make(map[string]any, len(items)*8)
	for _, item := range items {
		encodeItem(payload, item, fallbackSystem)
	}
	return payload
}

// existsFieldPrefix is the read-side twin of encodeItem's prefix selection,
// used by the duplicate check.
func existsFieldPrefix(item model.Item, fallbackSystem int) (string, bool) {
	schema, ok := sectionSchemas[item.Section]
	if !ok {
		return "", false
	}
	return schema.fieldPrefix(systemNumberFor(item, fallbackSystem), item.Position), true
}
