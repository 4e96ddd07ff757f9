package importer

import (
	"context"
	"strings"
	"testing"

	"wellops/internal/equipment"
	"wellops/internal/vendor"
	logx "wellops/pkg/logx"
)

type fakeStore struct {
	equipment map[string]equipment.Item // keyed by lowercased serial
	vendors   map[string]vendor.Vendor  // keyed by lowercased name
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		equipment: map[string]equipment.Item{},
		vendors:   map[string]vendor.Vendor{},
	}
}

func (f *fakeStore) FindEquipmentBySerial(_ context.Context, serial string) (equipment.Item, bool, error) {
	it, ok := f.equipment[strings.ToLower(serial)]
	return it, ok, nil
}

func (f *fakeStore) CreateEquipment(_ context.Context, it equipment.Item) error {
	f.equipment[strings.ToLower(it.Serial)] = it
	return nil
}

func (f *fakeStore) UpdateEquipment(_ context.Context, it equipment.Item) error {
	f.equipment[strings.ToLower(it.Serial)] = it
	return nil
}

func (f *fakeStore) FindVendorByName(_ context.Context, name string) (vendor.Vendor, bool, error) {
	v, ok := f.vendors[strings.ToLower(name)]
	return v, ok, nil
}

func (f *fakeStore) CreateVendor(_ context.Context, v vendor.Vendor) error {
	f.vendors[strings.ToLower(v.Name)] = v
	return nil
}

func (f *fakeStore) UpdateVendor(_ context.Context, v vendor.Vendor) error {
	f.vendors[strings.ToLower(v.Name)] = v
	return nil
}

func TestImportEquipmentCreatesAndUpdates(t *testing.T) {
	st := newFakeStore()
	st.equipment["pmp-101"] = equipment.Item{
		ID: "e1", Serial: "PMP-101", Name: "Old name", Status: equipment.StatusOnLocation, WellID: "w1",
	}
	svc := NewService(st, nil, logx.Nop())

	in := strings.Join([]string{
		"serial,name,category,vendor,daily_rate",
		"PMP-101,Triplex pump,pumps,Basin Rentals,450.00",
		"BOP-007,Annular BOP,pressure control,Basin Rentals,1250",
	}, "\n")

	sum, err := svc.ImportEquipment(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("ImportEquipment: %v", err)
	}
	if sum.Created != 1 || sum.Updated != 1 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	got := st.equipment["pmp-101"]
	if got.ID != "e1" {
		t.Fatalf("update replaced the record ID: %q", got.ID)
	}
	if got.Name != "Triplex pump" || got.DailyRateCents != 45000 {
		t.Fatalf("update didn't apply: %+v", got)
	}
	if got.Status != equipment.StatusOnLocation || got.WellID != "w1" {
		t.Fatalf("update clobbered location state: %+v", got)
	}

	bop := st.equipment["bop-007"]
	if bop.ID == "" || bop.DailyRateCents != 125000 || bop.Status != equipment.StatusAvailable {
		t.Fatalf("create: %+v", bop)
	}
	if bop.VendorID == "" {
		t.Fatal("vendor not resolved")
	}
	if v := st.vendors["basin rentals"]; v.ID != bop.VendorID {
		t.Fatalf("vendor id mismatch: %q vs %q", v.ID, bop.VendorID)
	}
	if len(st.vendors) != 1 {
		t.Fatalf("vendor created twice: %d", len(st.vendors))
	}
}

func TestImportEquipmentSkipsBadRows(t *testing.T) {
	svc := NewService(newFakeStore(), nil, logx.Nop())

	in := strings.Join([]string{
		"serial,name,daily_rate",
		",Missing serial,100",
		"OK-1,Good row,100",
		"BAD-1,Bad rate,abc",
	}, "\n")

	sum, err := svc.ImportEquipment(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("ImportEquipment: %v", err)
	}
	if sum.Created != 1 || sum.Skipped != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Issues) != 2 || sum.Issues[0].Line != 2 || sum.Issues[1].Line != 4 {
		t.Fatalf("issues = %+v", sum.Issues)
	}
}

func TestImportEquipmentRejectsMissingColumns(t *testing.T) {
	svc := NewService(newFakeStore(), nil, logx.Nop())
	_, err := svc.ImportEquipment(context.Background(), strings.NewReader("name,category\nPump,pumps\n"))
	if err == nil || !strings.Contains(err.Error(), "serial") {
		t.Fatalf("err = %v", err)
	}
}

func TestImportVendorsMatchesCaseInsensitively(t *testing.T) {
	st := newFakeStore()
	st.vendors["basin wireline"] = vendor.Vendor{ID: "v1", Name: "Basin Wireline", Active: true}
	svc := NewService(st, nil, logx.Nop())

	in := strings.Join([]string{
		"name,service,phone,email",
		"BASIN WIRELINE,wireline,555-0100,ops@basinwl.test",
		"Permian Cementing,cementing,555-0200,",
	}, "\n")

	sum, err := svc.ImportVendors(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("ImportVendors: %v", err)
	}
	if sum.Created != 1 || sum.Updated != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	v := st.vendors["basin wireline"]
	if v.ID != "v1" || v.Phone != "555-0100" || v.Service != "wireline" {
		t.Fatalf("update: %+v", v)
	}
	if nv := st.vendors["permian cementing"]; nv.ID == "" || !nv.Active {
		t.Fatalf("create: %+v", nv)
	}
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"", 0, true},
		{"0", 0, true},
		{"125", 12500, true},
		{"125.5", 12550, true},
		{"125.50", 12550, true},
		{"$1,250.00", 125000, true},
		{"-42.07", -4207, true},
		{".75", 75, true},
		{"1.234", 0, false},
		{"abc", 0, false},
		{"12a", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParseCents(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
