package components

// Health holds an entity's hit points, shield, and a fixed bank of
// active status effects. Unmanaged POD, adapted from the teacher's
// HealthComponent; StatusEffects is a fixed-size array rather than a
// slice for the same reason Transform drops its pointer fields — a
// ComponentTable[T] chunk is a raw, fixed-stride byte region.
type Health struct {
	CurrentHealth    int
	MaxHealth        int
	Shield           int
	IsInvincible     bool
	LastDamageAt     int64
	RegenerationRate float64
	StatusEffects    [MaxStatusEffects]StatusEffect
}

// NewHealth returns a full-health Health with no active effects.
func NewHealth(maxHealth int) Health {
	return Health{
		CurrentHealth: maxHealth,
		MaxHealth:     maxHealth,
	}
}

// TakeDamage applies damage to shield first, then current health,
// returning the actual health lost — mirrors the teacher's
// HealthComponent.TakeDamage.
func (h *Health) TakeDamage(damage int) int {
	if h.IsInvincible || damage <= 0 {
		return 0
	}
	h.LastDamageAt = unixNano()

	remaining := damage
	if h.Shield > 0 {
		if h.Shield >= remaining {
			h.Shield -= remaining
			return 0
		}
		remaining -= h.Shield
		h.Shield = 0
	}

	actual := remaining
	if actual > h.CurrentHealth {
		actual = h.CurrentHealth
	}
	h.CurrentHealth -= actual
	return actual
}

// Heal restores up to MaxHealth, returning the amount actually healed.
func (h *Health) Heal(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := h.CurrentHealth
	h.CurrentHealth += amount
	if h.CurrentHealth > h.MaxHealth {
		h.CurrentHealth = h.MaxHealth
	}
	return h.CurrentHealth - before
}

// IsDead reports whether current health has reached zero.
func (h *Health) IsDead() bool {
	return h.CurrentHealth <= 0
}

// AddStatusEffect installs eff into the first free (StatusTypeNone)
// slot, silently dropping it if the bank is full — a fixed-capacity
// component has no append, unlike the teacher's unbounded slice.
func (h *Health) AddStatusEffect(eff StatusEffect) bool {
	for i := range h.StatusEffects {
		if h.StatusEffects[i].Type == StatusTypeNone {
			eff.StartAt = unixNano()
			h.StatusEffects[i] = eff
			return true
		}
	}
	return false
}

// ClearStatusEffect removes the effect of the given type, if present.
func (h *Health) ClearStatusEffect(t StatusType) {
	for i := range h.StatusEffects {
		if h.StatusEffects[i].Type == t {
			h.StatusEffects[i] = StatusEffect{}
		}
	}
}
