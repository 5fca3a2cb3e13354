package shared

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StringSlice stores a []string as a JSON column, usable with both the
// sqlite and postgres drivers.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}

	return json.Unmarshal(bytes, s)
}

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionGood    Condition = "good"
	ConditionUsed    Condition = "used"
	ConditionDamaged Condition = "damaged"
	ConditionBroken  Condition = "broken"
	ConditionUnknown Condition = "unknown"
)

func (c Condition) String() string {
	return string(c)
}

// ParseCondition maps free-form model output onto the known condition set,
// falling back to unknown.
func ParseCondition(s string) Condition {
	switch Condition(s) {
	case ConditionNew, ConditionGood, ConditionUsed, ConditionDamaged, ConditionBroken:
		return Condition(s)
	default:
		return ConditionUnknown
	}
}
