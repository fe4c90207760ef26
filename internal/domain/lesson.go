package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Lesson is a bookable offering with a fixed number of spaces.
type Lesson struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Location  string          `json:"location"`
	Price     decimal.Decimal `json:"price"`
	Spaces    int             `json:"spaces"`
	Icon      string          `json:"icon,omitempty"`
	Version   int64           `json:"version,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero"`
}

// UnmarshalJSON also accepts the Mongo-style "_id" key some store deployments emit.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	type plain Lesson
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Lesson(aux.plain)
	if l.ID == "" {
		l.ID = aux.MongoID
	}
	return nil
}

// SpacesUpdate is the body of a lesson capacity write.
type SpacesUpdate struct {
	Spaces int `json:"spaces"`
}
