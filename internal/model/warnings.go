package model

// Warning codes attached to records during normalization and validation.
// Warnings are ordered and append-only; they are never fatal on their own.
const (
	WarnShortPhoneCode     = "short_phone_code"
	WarnScientificNotation = "scientific_notation_corrected"
	WarnAssumedACaller     = "unknown_direction_assumed_a_caller"
	WarnFutureTimestamp    = "timestamp_over_1h_in_future"
	WarnPre2015Timestamp   = "timestamp_before_2015"
	WarnLongDuration       = "duration_over_24h"
	WarnLongSMSDuration    = "sms_duration_over_1h"
	WarnSelfCall           = "self_call"
	WarnDurationFromParts  = "duration_from_min_sec_columns"
	WarnSiteCoordsUsed     = "coords_filled_from_site_field"
)
