// Package records supplies the immutable base prescription records the
// status store shadows. The prototype ships a seeded in-memory source;
// the interface is the boundary a real data source would implement.
package records

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
)

// Source is the read-only base record boundary.
type Source interface {
	// LoadAllPrescriptions returns every base prescription record.
	LoadAllPrescriptions() []*vo.Prescription
	// LoadCopaymentInfos returns settlement state that already existed
	// when the session started, keyed by VO number.
	LoadCopaymentInfos() map[string]*vo.CopaymentInfo
	// Find returns the base record for a VO number.
	Find(voNumber string) (*vo.Prescription, bool)
}

// MockSource is the seeded in-memory source for the prototype.
type MockSource struct {
	mu            sync.RWMutex
	prescriptions map[string]*vo.Prescription
	infos         map[string]*vo.CopaymentInfo
}

// NewMockSource creates a source seeded with representative practice data.
func NewMockSource() *MockSource {
	s := &MockSource{
		prescriptions: make(map[string]*vo.Prescription),
		infos:         make(map[string]*vo.CopaymentInfo),
	}
	s.seed()
	return s
}

func (s *MockSource) seed() {
	cost25 := decimal.RequireFromString("25.00")
	cost19 := decimal.RequireFromString("19.50")
	cost32 := decimal.RequireFromString("32.80")

	seedRecords := []*vo.Prescription{
		{
			Number: "VO-2026-0101", PatientName: "Greta Brandt", Therapy: "KG - Krankengymnastik",
			Prescribed: 8, Completed: 3, CostPerTreatment: cost25,
			Status: vo.StatusAborted, InsuranceStatus: vo.InsuranceReadyToSend,
			CopaymentStatus: vo.CopaymentForRefund, CopaymentLiable: true,
			IssuedAt: time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			Number: "VO-2026-0102", PatientName: "Jonas Keller", Therapy: "MT - Manuelle Therapie",
			Prescribed: 6, Completed: 6, CostPerTreatment: cost19,
			Status: vo.StatusTreatmentComplete, InsuranceStatus: vo.InsuranceSent,
			CopaymentStatus: vo.CopaymentPaid, CopaymentLiable: true,
			IssuedAt: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			Number: "VO-2026-0103", PatientName: "Mara Otten", Therapy: "MLD - Lymphdrainage",
			Prescribed: 10, Completed: 4, CostPerTreatment: cost32,
			Status: vo.StatusActive, InsuranceStatus: vo.InsuranceNone,
			CopaymentStatus: vo.CopaymentNone, CopaymentLiable: false,
			IssuedAt: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			Number: "VO-2026-0104", PatientName: "Ibrahim Sağlam", Therapy: "KG - Krankengymnastik",
			Prescribed: 12, Completed: 12, CostPerTreatment: cost25,
			Status: vo.StatusBilled, InsuranceStatus: vo.InsurancePaid,
			CopaymentStatus: vo.CopaymentPaid, CopaymentLiable: true,
			IssuedAt: time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			Number: "VO-2026-0105", PatientName: "Helene Voss", Therapy: "MT - Manuelle Therapie",
			Prescribed: 6, Completed: 0, CostPerTreatment: cost19,
			Status: vo.StatusExpired, InsuranceStatus: vo.InsuranceForFixing,
			CopaymentStatus: vo.CopaymentNone, CopaymentLiable: true,
			IssuedAt: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, p := range seedRecords {
		s.prescriptions[p.Number] = p
	}

	// VO-2026-0101 was invoiced before the course was aborted. The
	// snapshot fields mirror the record at invoice time.
	s.infos["VO-2026-0101"] = &vo.CopaymentInfo{
		InvoiceNumber:       "ZZ-VO-2026-0101",
		GeneratedAt:         time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC),
		Amount:              decimal.RequireFromString("30.00"),
		PrescribedAtInvoice: 8,
		CostAtInvoice:       cost25,
		DocumentGenerated:   true,
	}
	s.infos["VO-2026-0104"] = &vo.CopaymentInfo{
		InvoiceNumber:       "ZZ-VO-2026-0104",
		GeneratedAt:         time.Date(2026, 4, 9, 11, 0, 0, 0, time.UTC),
		Amount:              decimal.RequireFromString("40.00"),
		PrescribedAtInvoice: 12,
		CostAtInvoice:       cost25,
		DocumentGenerated:   true,
	}
}

// LoadAllPrescriptions implements Source. Records are returned sorted by
// VO number so listings are stable.
func (s *MockSource) LoadAllPrescriptions() []*vo.Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*vo.Prescription, 0, len(s.prescriptions))
	for _, p := range s.prescriptions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// LoadCopaymentInfos implements Source.
func (s *MockSource) LoadCopaymentInfos() map[string]*vo.CopaymentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*vo.CopaymentInfo, len(s.infos))
	for k, v := range s.infos {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Find implements Source.
func (s *MockSource) Find(voNumber string) (*vo.Prescription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prescriptions[voNumber]
	return p, ok
}
