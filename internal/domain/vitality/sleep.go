package vitality

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

type Sleep struct {
	SleepID                   uuid.UUID `json:"sleep_id" db:"sleep_id"`
	UserID                    uuid.UUID `json:"user_id" db:"user_id"`
	SleepDate                 string    `json:"sleep_date" db:"sleep_date"`
	Bedtime                   *string   `json:"bedtime" db:"bedtime"`
	WakeTime                  *string   `json:"wake_time" db:"wake_time"`
	SleepDurationHours        *float64  `json:"sleep_duration_hours" db:"sleep_duration_hours"`
	SleepEfficiencyPercentage *float64  `json:"sleep_efficiency_percentage" db:"sleep_efficiency_percentage"`
	SleepQualityRating        *float64  `json:"sleep_quality_rating" db:"sleep_quality_rating"`
	REMMinutes                *float64  `json:"rem_minutes" db:"rem_minutes"`
	DeepSleepMinutes          *float64  `json:"deep_sleep_minutes" db:"deep_sleep_minutes"`
	LightSleepMinutes         *float64  `json:"light_sleep_minutes" db:"light_sleep_minutes"`
	InterruptionsCount        *int      `json:"interruptions_count" db:"interruptions_count"`
	SleepEnvironmentRating    *float64  `json:"sleep_environment_rating" db:"sleep_environment_rating"`
	SleepAidsUsed             *string   `json:"sleep_aids_used" db:"sleep_aids_used"`
	Notes                     *string   `json:"notes" db:"notes"`
	IsActive                  bool      `json:"is_active" db:"is_active"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at" db:"updated_at"`
}

type SleepCreate struct {
	SleepDate                 string   `json:"sleep_date" validate:"required,isodate"`
	Bedtime                   *string  `json:"bedtime"`
	WakeTime                  *string  `json:"wake_time"`
	SleepDurationHours        *float64 `json:"sleep_duration_hours" validate:"omitempty,gte=0,lte=48"`
	SleepEfficiencyPercentage *float64 `json:"sleep_efficiency_percentage" validate:"omitempty,gte=0,lte=100"`
	SleepQualityRating        *float64 `json:"sleep_quality_rating" validate:"omitempty,gte=1,lte=5"`
	REMMinutes                *float64 `json:"rem_minutes" validate:"omitempty,gte=0"`
	DeepSleepMinutes          *float64 `json:"deep_sleep_minutes" validate:"omitempty,gte=0"`
	LightSleepMinutes         *float64 `json:"light_sleep_minutes" validate:"omitempty,gte=0"`
	InterruptionsCount        *int     `json:"interruptions_count" validate:"omitempty,gte=0"`
	SleepEnvironmentRating    *float64 `json:"sleep_environment_rating" validate:"omitempty,gte=1,lte=5"`
	SleepAidsUsed             *string  `json:"sleep_aids_used" validate:"omitempty,max=200"`
	Notes                     *string  `json:"notes"`
}

type SleepUpdate struct {
	SleepDate                 *string  `json:"sleep_date" validate:"omitempty,isodate"`
	Bedtime                   *string  `json:"bedtime"`
	WakeTime                  *string  `json:"wake_time"`
	SleepDurationHours        *float64 `json:"sleep_duration_hours" validate:"omitempty,gte=0,lte=48"`
	SleepEfficiencyPercentage *float64 `json:"sleep_efficiency_percentage" validate:"omitempty,gte=0,lte=100"`
	SleepQualityRating        *float64 `json:"sleep_quality_rating" validate:"omitempty,gte=1,lte=5"`
	REMMinutes                *float64 `json:"rem_minutes" validate:"omitempty,gte=0"`
	DeepSleepMinutes          *float64 `json:"deep_sleep_minutes" validate:"omitempty,gte=0"`
	LightSleepMinutes         *float64 `json:"light_sleep_minutes" validate:"omitempty,gte=0"`
	InterruptionsCount        *int     `json:"interruptions_count" validate:"omitempty,gte=0"`
	SleepEnvironmentRating    *float64 `json:"sleep_environment_rating" validate:"omitempty,gte=1,lte=5"`
	SleepAidsUsed             *string  `json:"sleep_aids_used" validate:"omitempty,max=200"`
	Notes                     *string  `json:"notes"`
}

var SleepTable = crud.Table{
	Name:          "patient__vitality__sleep",
	IDColumn:      "sleep_id",
	SearchColumns: []string{"sleep_aids_used", "notes"},
	Filters: []crud.Filter{
		{Param: "date_from", Column: "sleep_date", Op: crud.OpGte},
		{Param: "date_to", Column: "sleep_date", Op: crud.OpLte},
	},
	Sorts:       []string{"sleep_date", "created_at", "sleep_quality_rating"},
	DefaultSort: []crud.Sort{{Column: "sleep_date", Desc: true}},
	SoftDelete:  true,
}

// sleepSeverity colours a night by its self-rated quality.
func sleepSeverity(rating *float64) crud.Severity {
	if rating == nil {
		return crud.SeverityNormal
	}
	switch {
	case *rating < 2:
		return crud.SeveritySevere
	case *rating < 3:
		return crud.SeverityModerate
	case *rating < 4:
		return crud.SeverityMild
	}
	return crud.SeverityNormal
}

func sleepItem(s *Sleep) crud.ListItem {
	title := "Sleep"
	if s.SleepDurationHours != nil {
		title = num(*s.SleepDurationHours) + "h sleep"
	}
	return crud.ListItem{
		ID:          s.SleepID.String(),
		Title:       title,
		Letter:      "SL",
		Severity:    sleepSeverity(s.SleepQualityRating),
		ThirdColumn: s.SleepDate,
	}
}

func NewSleepResource(repo crud.Repository[Sleep]) *crud.Resource[Sleep, SleepCreate, SleepUpdate] {
	rating1, rating5 := crud.Range(1, 5)
	return &crud.Resource[Sleep, SleepCreate, SleepUpdate]{
		Table: SleepTable,
		Repo:  repo,
		List: crud.ListFeature[Sleep]{
			EntityName: "Sleep record",
			BasePath:   "/patient/vitality/sleep",
			Transform:  sleepItem,
			Filters: []crud.FilterField{
				{Key: "date_from", Label: "From", Type: "date"},
				{Key: "date_to", Label: "To", Type: "date"},
			},
		},
		Detail: crud.DetailFeature[Sleep]{
			FormFields: []crud.FormField{
				{Key: "sleep_date", Label: "Date", Type: "date", Required: true},
				{Key: "bedtime", Label: "Bedtime", Type: "text"},
				{Key: "wake_time", Label: "Wake Time", Type: "text"},
				{Key: "sleep_duration_hours", Label: "Duration (hours)", Type: "number"},
				{Key: "sleep_efficiency_percentage", Label: "Efficiency (%)", Type: "number"},
				{Key: "sleep_quality_rating", Label: "Quality", Type: "number", Min: rating1, Max: rating5},
				{Key: "rem_minutes", Label: "REM (min)", Type: "number"},
				{Key: "deep_sleep_minutes", Label: "Deep Sleep (min)", Type: "number"},
				{Key: "light_sleep_minutes", Label: "Light Sleep (min)", Type: "number"},
				{Key: "interruptions_count", Label: "Interruptions", Type: "number"},
				{Key: "sleep_environment_rating", Label: "Environment", Type: "number", Min: rating1, Max: rating5},
				{Key: "sleep_aids_used", Label: "Sleep Aids", Type: "text", MaxLength: 200},
				{Key: "notes", Label: "Notes", Type: "textarea"},
			},
		},
	}
}
