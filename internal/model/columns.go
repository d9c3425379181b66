package model

// Descriptive lead columns carried by imports.
const (
	ColNMLSID              = "nmlsid"
	ColName                = "name"
	ColLORole              = "lo_role"
	ColCompanyNMLS         = "company_nmls"
	ColCompany             = "company"
	ColType                = "type"
	ColCity                = "city"
	ColState               = "state"
	ColOfficeType          = "office_type"
	ColCompanyDetails      = "company_details"
	ColRank                = "rank"
	ColVolume              = "volume"
	ColUnits               = "units"
	ColMonthlyVolume       = "monthly_volume"
	ColMonthlyUnits        = "monthly_units"
	ColPurchasePercent     = "purchase_percent"
	ColMonthlyVolumeExport = "monthly_volume_export"
	ColVolumeExport        = "volume_export"
)

// DescriptiveColumns lists the import-owned columns in file order.
func DescriptiveColumns() []string {
	return []string{
		ColNMLSID, ColName, ColLORole, ColCompanyNMLS, ColCompany, ColType,
		ColCity, ColState, ColOfficeType, ColCompanyDetails, ColRank,
		ColVolume, ColUnits, ColMonthlyVolume, ColMonthlyUnits,
		ColPurchasePercent, ColMonthlyVolumeExport, ColVolumeExport,
	}
}

// LeadColumns lists every stored lead column except the surrogate id.
func LeadColumns() []string {
	return append(DescriptiveColumns(), EnrichmentColumns()...)
}

// IsIntColumn reports whether col holds an integer.
func IsIntColumn(col string) bool {
	return col == ColRank || col == ColUnits || col == ColMonthlyUnits
}

// Ptr returns a pointer to the field backing col (*string or *int), or
// nil for unknown columns. Stores scan into it directly.
func (l *Lead) Ptr(col string) any {
	switch col {
	case ColRank:
		return &l.Rank
	case ColUnits:
		return &l.Units
	case ColMonthlyUnits:
		return &l.MonthlyUnits
	}
	if f := l.stringField(col); f != nil {
		return f
	}
	return nil
}

// ColumnValue returns the value stored for col.
func (l *Lead) ColumnValue(col string) any {
	switch p := l.Ptr(col).(type) {
	case *int:
		return *p
	case *string:
		return *p
	}
	return nil
}

func (l *Lead) stringField(col string) *string {
	switch col {
	case ColNMLSID:
		return &l.NMLSID
	case ColName:
		return &l.Name
	case ColLORole:
		return &l.LORole
	case ColCompanyNMLS:
		return &l.CompanyNMLS
	case ColCompany:
		return &l.Company
	case ColType:
		return &l.Type
	case ColCity:
		return &l.City
	case ColState:
		return &l.State
	case ColOfficeType:
		return &l.OfficeType
	case ColCompanyDetails:
		return &l.CompanyDetails
	case ColVolume:
		return &l.Volume
	case ColMonthlyVolume:
		return &l.MonthlyVolume
	case ColPurchasePercent:
		return &l.PurchasePercent
	case ColMonthlyVolumeExport:
		return &l.MonthlyVolumeExport
	case ColVolumeExport:
		return &l.VolumeExport
	}
	return l.field(col)
}
