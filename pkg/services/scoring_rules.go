package services

import "strings"

// Rule categories, used for filtering and reporting only; score math is
// category-blind.
const (
	RuleCategoryEntity        = "entity"
	RuleCategoryProperty      = "property"
	RuleCategoryRelationships = "relationships"
	RuleCategoryTemporal      = "temporal"
)

// Rule is a named, weighted predicate over a scoring context. Evaluate must
// be pure: no mutation, no I/O. Name is the stable identifier recorded in
// score flags.
type Rule struct {
	Name        string
	Weight      int
	Category    string
	Description string
	Evaluate    func(ctx *ScoringContext) bool
}

// RuleRegistry holds scoring rules in registration order. Evaluation order
// follows registration order, which makes flags output deterministic.
// Construct one at the composition root and inject it into the scoring
// engine; there is no package-level registry.
type RuleRegistry struct {
	rules []Rule
}

// NewRuleRegistry creates a registry preloaded with the given rules.
func NewRuleRegistry(rules []Rule) *RuleRegistry {
	r := &RuleRegistry{}
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register appends a rule to the registry.
func (r *RuleRegistry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of the registered rules, optionally filtered by
// category ("" = all). Callers cannot mutate registry state through the
// returned slice.
func (r *RuleRegistry) Rules(category string) []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if category != "" && rule.Category != category {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// DefaultRules returns the canonical scoring rule set. Age-based rules
// guard on EntityAgeDays being known; an entity with no formation date
// never triggers them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "NEW_ENTITY_LT_90_DAYS",
			Weight:      10,
			Category:    RuleCategoryEntity,
			Description: "Entity formed within last 90 days",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.EntityAgeDays != nil && *ctx.EntityAgeDays < 90
			},
		},
		{
			Name:        "NEW_ENTITY_LT_30_DAYS",
			Weight:      15,
			Category:    RuleCategoryEntity,
			Description: "Entity formed within last 30 days",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.EntityAgeDays != nil && *ctx.EntityAgeDays < 30
			},
		},
		{
			Name:        "NO_PRIMARY_ADDRESS",
			Weight:      5,
			Category:    RuleCategoryEntity,
			Description: "Entity has no primary address on file",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.PrimaryAddressID == nil
			},
		},
		{
			Name:        "INACTIVE_STATUS",
			Weight:      8,
			Category:    RuleCategoryEntity,
			Description: "Entity status is inactive or dissolved",
			Evaluate: func(ctx *ScoringContext) bool {
				status := strings.ToUpper(ctx.Status)
				return status == "INACTIVE" || status == "DISSOLVED"
			},
		},
		{
			Name:        "OWNS_GT_10_PROPERTIES",
			Weight:      10,
			Category:    RuleCategoryProperty,
			Description: "Entity owns more than 10 properties",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.PropertyCount > 10
			},
		},
		{
			Name:        "OWNS_GT_25_PROPERTIES",
			Weight:      20,
			Category:    RuleCategoryProperty,
			Description: "Entity owns more than 25 properties",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.PropertyCount > 25
			},
		},
		{
			Name:        "NO_PROPERTY_OWNERSHIP",
			Weight:      5,
			Category:    RuleCategoryProperty,
			Description: "Entity owns no properties (may be shell)",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.PropertyCount == 0 && ctx.EntityAgeDays != nil && *ctx.EntityAgeDays > 365
			},
		},
		{
			Name:        "AGENT_REPRESENTS_GT_50_ENTITIES",
			Weight:      15,
			Category:    RuleCategoryRelationships,
			Description: "Registered agent represents more than 50 entities",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.AgentEntityCount > 50
			},
		},
		{
			Name:        "ADDRESS_GT_20_ENTITIES",
			Weight:      12,
			Category:    RuleCategoryRelationships,
			Description: "More than 20 entities at same address",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.AddressEntityCount > 20
			},
		},
		{
			Name:        "ADDRESS_GT_5_ENTITIES_NEW",
			Weight:      8,
			Category:    RuleCategoryRelationships,
			Description: "More than 5 entities at same address, entity is new",
			Evaluate: func(ctx *ScoringContext) bool {
				return ctx.AddressEntityCount > 5 && ctx.EntityAgeDays != nil && *ctx.EntityAgeDays < 180
			},
		},
	}
}
