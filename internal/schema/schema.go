// Package schema declares the rule set of every create/edit screen.
//
// The same declarations back the interactive form sessions and the server's
// form handler, so a rule is written once and checked identically on both sides.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/validation"
)

// Schema names accepted by Lookup
const (
	Course            = "course"
	Section           = "section"
	Tenant            = "tenant"
	User              = "user"
	Forum             = "forum"
	Module            = "module"
	Assessment        = "assessment"
	Comment           = "comment"
	ContentItemPrefix = "content_item."
)

// Definition is a rule set plus the form-level behavior around it
type Definition struct {
	Rules *validation.RuleSet
	// SlugFrom names the field a blank "slug" is generated from
	SlugFrom string
}

// Prepare returns a copy of values ready for validation, filling a blank
// slug from SlugFrom.
func (d Definition) Prepare(values validation.Values) validation.Values {
	out := make(validation.Values, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	if d.SlugFrom != "" && d.Rules.Has("slug") && strings.TrimSpace(out["slug"]) == "" {
		if slug := validation.GenerateSlug(out[d.SlugFrom]); slug != "" {
			out["slug"] = slug
		}
	}
	return out
}

// bcryptMaxBytes is the longest input bcrypt accepts
const bcryptMaxBytes = 72

var passwordStrength = regexp.MustCompile(`^(?:.*[A-Za-z].*[0-9]|.*[0-9].*[A-Za-z]).*$`)

var (
	courseBasics = []validation.FieldSpec{
		validation.Field("title", "Title", validation.Rule{Required: true, MinLength: 5, MaxLength: 100}),
		validation.Field("description", "Description", validation.Rule{Required: true, MinLength: 20, MaxLength: 2000}),
		validation.Field("level", "Level", validation.Rule{Required: true, OneOf: models.Keys(models.ValidCourseLevels)}),
	}
	courseSchedule = []validation.FieldSpec{
		validation.Field("start_date", "Start date", validation.Rule{NotPast: true}),
		validation.Field("end_date", "End date", validation.Rule{After: "start_date"}),
	}
	coursePricing = []validation.FieldSpec{
		validation.Field("price", "Price", validation.Rule{Numeric: true, MinValue: validation.Bound(0), MaxValue: validation.Bound(100000)}),
		validation.Field("max_students", "Maximum students", validation.Rule{Integer: true, MinValue: validation.Bound(1), MaxValue: validation.Bound(10000)}),
	}
)

// CourseWizardSteps are the steps of the course creation wizard.
// Only the first step has required fields.
var CourseWizardSteps = []*validation.RuleSet{
	validation.MustRuleSet("course_basics", courseBasics...),
	validation.MustRuleSet("course_schedule", courseSchedule...),
	validation.MustRuleSet("course_pricing", coursePricing...),
}

var contentItemBase = validation.MustRuleSet("content_item",
	validation.Field("title", "Title", validation.Rule{Required: true, MinLength: 3, MaxLength: 150}),
	validation.Field("type", "Content type", validation.Rule{Required: true, OneOf: models.Keys(models.ValidContentTypes)}),
	validation.Field("position", "Position", validation.Rule{Integer: true, MinValue: validation.Bound(0)}),
)

var contentItemRules = map[models.ContentType]*validation.RuleSet{
	models.ContentVideo: contentItemBase.Extend(ContentItemPrefix+"video",
		validation.Field("video_url", "Video URL", validation.Rule{Required: true, URL: true}),
		validation.Field("duration_seconds", "Duration", validation.Rule{Integer: true, MinValue: validation.Bound(1)}),
		validation.Field("provider", "Provider", validation.Rule{OneOf: []string{"youtube", "vimeo", "upload"}}),
	),
	models.ContentDocument: contentItemBase.Extend(ContentItemPrefix+"document",
		validation.Field("file_key", "File", validation.Rule{Required: true, MaxLength: 512}),
		validation.Field("mime_type", "File type", validation.Rule{OneOf: []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		}}),
		validation.Field("page_count", "Page count", validation.Rule{Integer: true, MinValue: validation.Bound(1)}),
	),
	models.ContentLink: contentItemBase.Extend(ContentItemPrefix+"link",
		validation.Field("url", "URL", validation.Rule{Required: true, URL: true}),
		validation.Field("open_in_new_tab", "Open in new tab", validation.Rule{OneOf: []string{"true", "false"}}),
	),
	models.ContentText: contentItemBase.Extend(ContentItemPrefix+"text",
		validation.Field("body", "Body", validation.Rule{Required: true, MaxLength: 20000}),
	),
}

var registry = map[string]Definition{
	Course: {
		Rules: validation.MustRuleSet(Course, concat(
			courseBasics,
			[]validation.FieldSpec{validation.Field("slug", "Slug", validation.Rule{Slug: true})},
			courseSchedule,
			coursePricing,
		)...),
		SlugFrom: "title",
	},
	Section: {Rules: validation.MustRuleSet(Section,
		validation.Field("title", "Title", validation.Rule{Required: true, MinLength: 3, MaxLength: 100}),
		validation.Field("description", "Description", validation.Rule{MaxLength: 500}),
		validation.Field("position", "Position", validation.Rule{Integer: true, MinValue: validation.Bound(0)}),
	)},
	Tenant: {Rules: validation.MustRuleSet(Tenant,
		validation.Field("name", "Name", validation.Rule{Required: true, MinLength: 3, MaxLength: 100}),
		validation.Field("subdomain", "Subdomain", validation.Rule{Required: true, Subdomain: true}),
		validation.Field("contact_email", "Contact email", validation.Rule{Required: true, Email: true}),
		validation.Field("website", "Website", validation.Rule{URL: true}),
	)},
	User: {Rules: validation.MustRuleSet(User,
		validation.Field("first_name", "First name", validation.Rule{Required: true, MaxLength: 50}),
		validation.Field("last_name", "Last name", validation.Rule{Required: true, MaxLength: 50}),
		validation.Field("email", "Email", validation.Rule{Required: true, Email: true}),
		validation.Field("role", "Role", validation.Rule{Required: true, OneOf: models.Keys(models.ValidRoles)}),
		validation.Field("password", "Password", validation.Rule{
			Required: true, MinLength: 8, MaxLength: 72, MaxBytes: bcryptMaxBytes,
			Pattern: passwordStrength, PatternMessage: "Password must contain letters and numbers",
		}),
		validation.Field("password_confirmation", "Password confirmation", validation.Rule{Required: true, EqualTo: "password"}),
	)},
	Forum: {
		Rules: validation.MustRuleSet(Forum,
			validation.Field("name", "Name", validation.Rule{Required: true, MinLength: 3, MaxLength: 100}),
			validation.Field("slug", "Slug", validation.Rule{Required: true, Slug: true}),
			validation.Field("description", "Description", validation.Rule{MaxLength: 500}),
		),
		SlugFrom: "name",
	},
	Module: {Rules: validation.MustRuleSet(Module,
		validation.Field("title", "Title", validation.Rule{Required: true, MinLength: 3, MaxLength: 100}),
		validation.Field("description", "Description", validation.Rule{MaxLength: 1000}),
		validation.Field("position", "Position", validation.Rule{Integer: true, MinValue: validation.Bound(0)}),
	)},
	Assessment: {Rules: validation.MustRuleSet(Assessment,
		validation.Field("title", "Title", validation.Rule{Required: true, MinLength: 3, MaxLength: 150}),
		validation.Field("type", "Assessment type", validation.Rule{Required: true, OneOf: models.Keys(models.ValidAssessmentTypes)}),
		validation.Field("passing_score", "Passing score", validation.Rule{Numeric: true, MinValue: validation.Bound(0), MaxValue: validation.Bound(100)}),
		validation.Field("time_limit_minutes", "Time limit", validation.Rule{Integer: true, MinValue: validation.Bound(1), MaxValue: validation.Bound(600)}),
		validation.Field("max_attempts", "Maximum attempts", validation.Rule{Integer: true, MinValue: validation.Bound(1), MaxValue: validation.Bound(20)}),
		validation.Field("available_from", "Available from", validation.Rule{NotPast: true}),
		validation.Field("available_until", "Available until", validation.Rule{After: "available_from"}),
	)},
	Comment: {Rules: validation.CommentRules},
}

func init() {
	for t, rs := range contentItemRules {
		registry[ContentItemName(t)] = Definition{Rules: rs}
	}
}

func concat(groups ...[]validation.FieldSpec) []validation.FieldSpec {
	var out []validation.FieldSpec
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Lookup returns the definition registered under name
func Lookup(name string) (Definition, bool) {
	d, ok := registry[name]
	return d, ok
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) Definition {
	d, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("schema: unknown schema %q", name))
	}
	return d
}

// Names lists the registered schemas, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForContentType returns the content item rule set for one metadata variant
func ForContentType(t models.ContentType) (*validation.RuleSet, bool) {
	rs, ok := contentItemRules[t]
	return rs, ok
}

// ContentItemName returns the schema name for a content type
func ContentItemName(t models.ContentType) string {
	return ContentItemPrefix + strings.ToLower(string(t))
}

// Resolve finds the definition for a submission. A bare "content_item"
// picks its variant from the submitted "type" field.
func Resolve(name string, values validation.Values) (Definition, bool) {
	if name == strings.TrimSuffix(ContentItemPrefix, ".") {
		t := models.ContentType(strings.ToUpper(strings.TrimSpace(values["type"])))
		if !models.ValidContentTypes[t] {
			return Definition{Rules: contentItemBase}, true
		}
		name = ContentItemName(t)
	}
	return Lookup(name)
}
