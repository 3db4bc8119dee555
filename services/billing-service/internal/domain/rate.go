package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RateType тип ставки
type RateType string

const (
	RateTypeHourly     RateType = "hourly"
	RateTypeBlended    RateType = "blended"
	RateTypeDiscounted RateType = "discounted"
	RateTypePremium    RateType = "premium"
)

// IsValidRateType проверяет тип ставки
func IsValidRateType(t RateType) bool {
	switch t {
	case RateTypeHourly, RateTypeBlended, RateTypeDiscounted, RateTypePremium:
		return true
	default:
		return false
	}
}

// RateSource показывает, на каком шаге была найдена ставка
type RateSource string

const (
	RateSourceExplicit     RateSource = "explicit"
	RateSourceCaseDefault  RateSource = "case_default"
	RateSourceCaseSpecific RateSource = "case_specific"
	RateSourceScoped       RateSource = "scoped"
	RateSourceUserBase     RateSource = "user_base"
	RateSourceRoleDefault  RateSource = "role_default"
	RateSourceFirmDefault  RateSource = "firm_default"
)

// BillingRate ставка с необязательными областями действия.
// Nil в поле области означает "любое значение".
type BillingRate struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	UserID        *string         `json:"user_id,omitempty"`
	LegalCaseID   *string         `json:"legal_case_id,omitempty"`
	ClientID      *string         `json:"client_id,omitempty"`
	MatterTypeID  *string         `json:"matter_type_id,omitempty"`
	RateAmount    decimal.Decimal `json:"rate_amount"`
	RateType      RateType        `json:"rate_type"`
	EffectiveDate time.Time       `json:"effective_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Specificity возвращает количество заданных областей
func (r *BillingRate) Specificity() int {
	n := 0
	for _, scope := range []*string{r.UserID, r.LegalCaseID, r.ClientID, r.MatterTypeID} {
		if scope != nil {
			n++
		}
	}
	return n
}

// IsUserBase проверяет, что это базовая ставка пользователя без других областей
func (r *BillingRate) IsUserBase() bool {
	return r.UserID != nil && r.LegalCaseID == nil && r.ClientID == nil && r.MatterTypeID == nil
}

// IsEffectiveOn проверяет, действует ли ставка в указанную дату (по календарной дате)
func (r *BillingRate) IsEffectiveOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	day := civilDay(date)
	if civilDay(r.EffectiveDate) > day {
		return false
	}
	if r.EndDate != nil && civilDay(*r.EndDate) < day {
		return false
	}
	return true
}

// Matches проверяет, что каждая заданная область совпадает с запросом
func (r *BillingRate) Matches(q RateQuery) bool {
	if r.TenantID != q.TenantID {
		return false
	}
	if r.UserID != nil && *r.UserID != q.UserID {
		return false
	}
	return scopeMatches(r.LegalCaseID, q.CaseID) &&
		scopeMatches(r.ClientID, q.ClientID) &&
		scopeMatches(r.MatterTypeID, q.MatterTypeID)
}

// Clone возвращает глубокую копию ставки
func (r *BillingRate) Clone() *BillingRate {
	if r == nil {
		return nil
	}
	c := *r
	c.UserID = cloneString(r.UserID)
	c.LegalCaseID = cloneString(r.LegalCaseID)
	c.ClientID = cloneString(r.ClientID)
	c.MatterTypeID = cloneString(r.MatterTypeID)
	if r.EndDate != nil {
		end := *r.EndDate
		c.EndDate = &end
	}
	return &c
}

func scopeMatches(scope, value *string) bool {
	if scope == nil {
		return true
	}
	return value != nil && *scope == *value
}

// RateQuery контекст разрешения ставки
type RateQuery struct {
	TenantID     string
	UserID       string
	CaseID       *string
	ClientID     *string
	MatterTypeID *string
	Date         time.Time
}

// RateResolution результат разрешения базовой ставки
type RateResolution struct {
	Rate   decimal.Decimal `json:"rate"`
	Source RateSource      `json:"source"`
	RateID string          `json:"rate_id,omitempty"`
}

// PickMostSpecificRate выбирает ставку с наибольшей специфичностью,
// при равенстве - с самой поздней датой начала действия.
// Ставки без единой области не участвуют.
func PickMostSpecificRate(rates []*BillingRate, q RateQuery) *BillingRate {
	candidates := make([]*BillingRate, 0, len(rates))
	for _, r := range rates {
		if r.Specificity() == 0 || !r.Matches(q) || !r.IsEffectiveOn(q.Date) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rateBefore(candidates[i], candidates[j])
	})
	return candidates[0]
}

// PickCaseSpecificRate выбирает активную ставку ровно для пары (дело, пользователь)
func PickCaseSpecificRate(rates []*BillingRate, tenantID, caseID, userID string) *BillingRate {
	var best *BillingRate
	for _, r := range rates {
		if !r.IsActive || r.TenantID != tenantID {
			continue
		}
		if r.LegalCaseID == nil || *r.LegalCaseID != caseID || r.UserID == nil || *r.UserID != userID {
			continue
		}
		if best == nil || r.EffectiveDate.After(best.EffectiveDate) ||
			(r.EffectiveDate.Equal(best.EffectiveDate) && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

// PickUserBaseRate выбирает активную базовую ставку пользователя
func PickUserBaseRate(rates []*BillingRate, tenantID, userID string) *BillingRate {
	var best *BillingRate
	for _, r := range rates {
		if !r.IsActive || r.TenantID != tenantID || !r.IsUserBase() || *r.UserID != userID {
			continue
		}
		if best == nil || r.EffectiveDate.After(best.EffectiveDate) ||
			(r.EffectiveDate.Equal(best.EffectiveDate) && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

func rateBefore(a, b *BillingRate) bool {
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	return a.ID < b.ID
}
