package directory

import (
	"context"
	"sort"
)

// StaticDirectory serves a fixed in-process catalog.
type StaticDirectory struct {
	doctors map[int64]Doctor
	clinics map[int64]Clinic
}

func NewStaticDirectory(doctors []Doctor, clinics []Clinic) *StaticDirectory {
	d := &StaticDirectory{
		doctors: make(map[int64]Doctor, len(doctors)),
		clinics: make(map[int64]Clinic, len(clinics)),
	}
	for _, doc := range doctors {
		d.doctors[doc.ID] = doc
	}
	for _, c := range clinics {
		d.clinics[c.ID] = c
	}
	return d
}

// NewDefaultDirectory returns the built-in catalog used when no database backs the directory.
func NewDefaultDirectory() *StaticDirectory {
	return NewStaticDirectory(defaultDoctors, defaultClinics)
}

func (d *StaticDirectory) GetDoctor(_ context.Context, id int64) (*Doctor, error) {
	doc, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &doc, nil
}

func (d *StaticDirectory) GetClinic(_ context.Context, id int64) (*Clinic, error) {
	c, ok := d.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (d *StaticDirectory) ListDoctors(_ context.Context, f Filter) ([]Doctor, error) {
	out := make([]Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		if f.matches(doc.Location, doc.Specialty) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *StaticDirectory) ListClinics(_ context.Context, f Filter) ([]Clinic, error) {
	out := make([]Clinic, 0, len(d.clinics))
	for _, c := range d.clinics {
		// clinics have no single specialty; only location narrows them
		if f.Location != "" && !containsFold(c.Location, f.Location) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var defaultClinics = []Clinic{
	{ID: 1, Name: "Apollo Hospitals Visakhapatnam", Address: "Arilova, Visakhapatnam, Andhra Pradesh 530040", Location: "Visakhapatnam", Phone: "+91-891-2888888"},
	{ID: 2, Name: "KIMS ICON Hospital", Address: "Visakhapatnam, Andhra Pradesh 530017", Location: "Visakhapatnam", Phone: "+91-891-3040404"},
	{ID: 3, Name: "Care Hospitals Visakhapatnam", Address: "Ramnagar, Visakhapatnam, Andhra Pradesh 530002", Location: "Visakhapatnam", Phone: "+91-891-6677777"},
	{ID: 4, Name: "Manipal Hospitals Vijayawada", Address: "NH-5, Tadepalli, Vijayawada, Andhra Pradesh 522501", Location: "Vijayawada", Phone: "+91-863-2344444"},
	{ID: 5, Name: "Andhra Hospitals Vijayawada", Address: "Siddartha Nagar, Vijayawada, Andhra Pradesh 520010", Location: "Vijayawada", Phone: "+91-866-2555555"},
	{ID: 6, Name: "Rainbow Children Hospital", Address: "Benz Circle, Vijayawada, Andhra Pradesh 520010", Location: "Vijayawada", Phone: "+91-866-6677788"},
	{ID: 7, Name: "NRI Medical College Hospital", Address: "Chinakakani, Guntur, Andhra Pradesh 522503", Location: "Guntur", Phone: "+91-863-2346666"},
	{ID: 8, Name: "LV Prasad Eye Institute", Address: "Kalluru, Guntur, Andhra Pradesh 522017", Location: "Guntur", Phone: "+91-863-2555777"},
}

var defaultDoctors = []Doctor{
	{ID: 1, Name: "Dr. Rajesh Kumar", Specialty: "Cardiology", Location: "Visakhapatnam", ClinicID: 1, Fee: 800},
	{ID: 2, Name: "Dr. Priya Sharma", Specialty: "Dermatology", Location: "Visakhapatnam", ClinicID: 2, Fee: 600},
	{ID: 3, Name: "Dr. Emily Davis", Specialty: "General Practitioner", Location: "Visakhapatnam", ClinicID: 3, Fee: 500},
	{ID: 4, Name: "Dr. Robert Wilson", Specialty: "Orthopedics", Location: "Visakhapatnam", ClinicID: 3, Fee: 900},
	{ID: 5, Name: "Dr. Lisa Chen", Specialty: "Pediatrics", Location: "Vijayawada", ClinicID: 6, Fee: 550},
	{ID: 6, Name: "Dr. Anil Reddy", Specialty: "Neurology", Location: "Vijayawada", ClinicID: 5, Fee: 1000},
	{ID: 7, Name: "Dr. Kavitha Rao", Specialty: "Gynecology", Location: "Vijayawada", ClinicID: 4, Fee: 700},
	{ID: 8, Name: "Dr. Suresh Babu", Specialty: "General Medicine", Location: "Guntur", ClinicID: 7, Fee: 400},
	{ID: 9, Name: "Dr. Meena Iyer", Specialty: "Ophthalmology", Location: "Guntur", ClinicID: 8, Fee: 650},
}
