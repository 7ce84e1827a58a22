package ingest

// Raw column names as they appear in the OCDS flattened exports.
const (
	ColTenderLink        = "_link"
	ColProcurementMethod = "tender_procurementMethod"
	ColParentLink        = "_link_main"
	ColValueAmount       = "value_amount"
	ColDateSigned        = "dateSigned"
	ColPeriodStart       = "period_startDate"
	ColSupplierName      = "name"
	ColSupplierID        = "id"
	ColPartyID           = "id"
	ColPartyName         = "name"
)

// Source names used in errors, logs and manifests.
const (
	SourceTenders   = "tenders"
	SourceAwards    = "awards"
	SourceContracts = "contracts"
	SourceSuppliers = "suppliers"
	SourceParties   = "parties"
)

// Source describes one raw table to load.
type Source struct {
	Name     string
	Path     string
	Required []string
	// DedupKey, when set, keeps only the first row per key value.
	DedupKey string
}

// TenderSource is the tender table (join key and procurement method). The
// exports repeat a tender only by mistake, so it is deduplicated on its key
// too.
func TenderSource(path string) Source {
	return Source{
		Name:     SourceTenders,
		Path:     path,
		Required: []string{ColTenderLink, ColProcurementMethod},
		DedupKey: ColTenderLink,
	}
}

// AwardSource is the award table, reduced to the first award per tender.
func AwardSource(path string) Source {
	return Source{
		Name:     SourceAwards,
		Path:     path,
		Required: []string{ColParentLink, ColValueAmount},
		DedupKey: ColParentLink,
	}
}

// TimingSource is the contract table with signature and start dates.
func TimingSource(path string) Source {
	return Source{
		Name:     SourceContracts,
		Path:     path,
		Required: []string{ColParentLink, ColDateSigned, ColPeriodStart},
		DedupKey: ColParentLink,
	}
}

// SupplierSource is the award-supplier table. columns lists the identity
// columns the active resolver needs; the parent link is always added.
func SupplierSource(path string, columns []string) Source {
	req := []string{ColParentLink}
	for _, c := range columns {
		if c != ColParentLink {
			req = append(req, c)
		}
	}
	return Source{
		Name:     SourceSuppliers,
		Path:     path,
		Required: req,
		DedupKey: ColParentLink,
	}
}

// PartySource is the party directory used for supplier display names.
func PartySource(path string) Source {
	return Source{
		Name:     SourceParties,
		Path:     path,
		Required: []string{ColPartyID, ColPartyName},
		DedupKey: ColPartyID,
	}
}
