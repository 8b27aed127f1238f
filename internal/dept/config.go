// Package dept holds the department registry and turns snapshot tables
// into the per-department data shown on a dashboard.
package dept

import (
	"errors"
	"sort"
)

var ErrUnknownDepartment = errors.New("unknown department")

// AllSelection selects every ID of a department.
const AllSelection = "All"

// Config is a logical department made of one or more workday cost centers.
// A member may itself be a named group of IDs, such as the CT/Imaging pair
// inside Imaging.
type Config struct {
	Key     string
	Name    string
	Members []Member
}

// Member is either a single department ID or a nested group.
type Member struct {
	ID    string
	Group *Config
}

// Label is what a member is shown as in the department selector.
func (m Member) Label() string {
	if m.Group != nil {
		return m.Group.Name
	}
	return m.ID
}

// AllIDs flattens the config's members, recursing into nested groups.
func (c Config) AllIDs() []string {
	var ids []string
	for _, m := range c.Members {
		if m.Group != nil {
			ids = append(ids, m.Group.AllIDs()...)
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

// Select returns the IDs for a selector value: AllSelection (or empty) for
// every ID, a member ID, or the name of a nested group. Unknown values
// select nothing.
func (c Config) Select(selection string) []string {
	if selection == "" || selection == AllSelection {
		return c.AllIDs()
	}
	for _, m := range c.Members {
		if m.Group != nil && m.Group.Name == selection {
			return m.Group.AllIDs()
		}
		if m.Group == nil && m.ID == selection {
			return []string{m.ID}
		}
	}
	return nil
}

// Options are the selector values offered for the config, AllSelection first.
// A single-member department offers only its member.
func (c Config) Options() []string {
	if len(c.Members) == 1 && c.Members[0].Group == nil {
		return []string{c.Members[0].ID}
	}
	opts := []string{AllSelection}
	for _, m := range c.Members {
		opts = append(opts, m.Label())
	}
	return opts
}

func ids(list ...string) []Member {
	out := make([]Member, len(list))
	for i, id := range list {
		out[i] = Member{ID: id}
	}
	return out
}

func group(name string, list ...string) Member {
	return Member{Group: &Config{Name: name, Members: ids(list...)}}
}

func simple(key, name string, list ...string) Config {
	return Config{Key: key, Name: name, Members: ids(list...)}
}

// Registry maps department keys to their configs.
type Registry struct {
	byKey map[string]Config
}

// NewRegistry builds a registry from configs. Later duplicates replace earlier ones.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{byKey: make(map[string]Config, len(configs))}
	for _, c := range configs {
		r.byKey[c.Key] = c
	}
	return r
}

// Lookup returns the config for key.
func (r *Registry) Lookup(key string) (Config, error) {
	c, ok := r.byKey[key]
	if !ok {
		return Config{}, ErrUnknownDepartment
	}
	return c, nil
}

// All returns every config sorted by display name.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.byKey))
	for _, c := range r.byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Key < out[j].Key
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Default returns the registry of hospital departments.
func Default() *Registry {
	return NewRegistry(
		simple("admin", "Administration", "CC_86000"),
		simple("anesthesiology", "Anesthesiology", "CC_70400"),
		simple("athletic_trainer", "Athletic Trainer Program", "CC_72035"),
		simple("bh", "Palouse Psychiatry and Behavioral Health", "CC_72760"),
		simple("birthplace", "Birthplace", "CC_60790"),
		simple("cardio_pulm_rehab", "Cardiopulmonary Rehabilitation", "CC_71850"),
		simple("heart_center", "Palouse Heart Center", "CC_72790"),
		simple("care_coord", "Care Coordination", "CC_83600"),
		simple("cli", "Center of Learning & Innovation", "CC_86130"),
		simple("clinic_admin", "Clinic Administration", "CC_86090"),
		simple("clinic_business", "Clinic Business Office", "CC_85400"),
		simple("clinical_coord", "Clinical Coordinators", "CC_87185"),
		simple("informatics", "Clinical Informatics", "CC_87190"),
		simple("ed_dept", "Emergency Department", "CC_72300"),
		simple("ed_phys", "Emergency Physicians", "CC_72390"),
		simple("environmental_svc", "Environmental Services", "CC_84600"),
		simple("external_relations", "External Relations", "CC_86300"),
		simple("family_med", "Pullman Family Medicine", "CC_72770"),
		simple("finance", "Finance", "CC_85910"),
		simple("fiscal", "Fiscal Services", "CC_85900"),
		simple("foundation", "Foundation", "CC_84960"),
		simple("health_center", "Palouse Health Center", "CC_72775"),
		simple("him", "Health Information Management", "CC_86900"),
		simple("hospitalist", "Hospitalist", "CC_60150"),
		simple("hr", "Human Resources", "CC_86500"),
		simple("icu", "ICU", "CC_60100"),
		Config{Key: "imaging", Name: "Imaging", Members: append(
			[]Member{group("CT/Imaging", "CC_71300", "CC_71400")},
			ids("CC_71200", "CC_71430", "CC_71600", "CC_71450")...,
		)},
		simple("infection_control", "Infection Control", "CC_87170"),
		simple("it", "Information Technology", "CC_84800"),
		simple("lab", "Laboratory", "CC_70700"),
		simple("maintenance", "Maintenance", "CC_84310"),
		simple("medical_staff", "Medical Staff Services", "CC_87000"),
		simple("medsurg", "Medical Surgical Unit", "CC_60700"),
		simple("nursery", "Nursery", "CC_61700"),
		simple("nursing_admin", "Nursing Administration", "CC_87180"),
		simple("nutrition", "Nutrition Therapy", "CC_83210"),
		simple("ortho", "Inland Orthopedics", "CC_72800", "CC_72795"),
		simple("pacu", "Post Anesthesia Care Unit", "CC_70300"),
		simple("pain", "Pain Management", "CC_70270"),
		simple("patient_financial", "Patient Financial Services", "CC_85300"),
		simple("physicians", "Physicians", "CC_87100"),
		simple("pediatrics", "Palouse Pediatrics", "CC_72745", "CC_72740"),
		simple("pharmacy", "Pharmacy", "CC_71700"),
		simple("foot_ankle", "Pullman Foot and Ankle Clinic", "CC_72720"),
		simple("quality_resources", "Quality Resources", "CC_87140"),
		simple("redsage", "Red Sage", "CC_83200"),
		simple("registration", "Registration", "CC_85600"),
		simple("reliability", "Reliability", "CC_87145"),
		simple("residency", "Family Medicine Residency", "CC_74910"),
		simple("resource_materials", "Resource & Materials Management", "CC_84200"),
		simple("respiratory", "Respiratory Care Services", "CC_71800"),
		simple("revenue_cycle", "Revenue Cycle", "CC_85500"),
		simple("same_day", "Same Day Services", "CC_70260"),
		simple("sleep", "Palouse Sleep Medicine and Pulmonology", "CC_72785"),
		simple("sleep_lab", "Sleep Lab", "CC_71810"),
		// Rehab PT/OT/ST, Stadium Way, Acupuncture, Massage, Genetics
		simple("summit", "Summit", "CC_72000", "CC_72015", "CC_72045", "CC_72025", "CC_72055"),
		simple("supply_dist", "Supply & Distribution", "CC_70500"),
		simple("surgery", "Pullman Surgical Associates", "CC_72780"),
		simple("surgical_svc", "Surgical Services", "CC_70200"),
		simple("urology", "Palouse Urology", "CC_72750"),
		Config{Key: "clinics", Name: "All Outpatient Clinics", Members: []Member{
			{ID: "CC_74910"},
			group("Inland Orthopedics", "CC_72800", "CC_72795"),
			{ID: "CC_72775"},
			{ID: "CC_72790"},
			group("Palouse Pediatrics", "CC_72745", "CC_72740"),
			{ID: "CC_72760"},
			{ID: "CC_72785"},
			{ID: "CC_72750"},
			{ID: "CC_72770"},
			{ID: "CC_72720"},
			{ID: "CC_72780"},
		}},
	)
}
