package store

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/model"
)

// FileName returns the CSV snapshot name of a version.
func FileName(v model.Version) string {
	return TableName("training_data", v) + ".csv"
}

type v1Row struct {
	Amount              float64 `csv:"amount"`
	IsDirectProcurement int     `csv:"is_direct_procurement"`
	IsRoundAmount       int     `csv:"is_round_amount"`
	MissingDataCount    int     `csv:"missing_data_count"`
	RiskScore           float64 `csv:"risk_score"`
	RiskLabel           int     `csv:"risk_label"`
}

type v2Row struct {
	Amount                float64 `csv:"amount"`
	IsDirectProcurement   int     `csv:"is_direct_procurement"`
	IsRoundAmount         int     `csv:"is_round_amount"`
	SuspiciousTiming      int     `csv:"suspicious_timing"`
	SupplierAwardCount    int     `csv:"supplier_award_count"`
	NewSupplierDirectDeal int     `csv:"new_supplier_direct_deal"`
	RiskScore             float64 `csv:"risk_score"`
	RiskLabel             int     `csv:"risk_label"`
}

type v3Row struct {
	Amount                float64 `csv:"amount"`
	IsDirectProcurement   int     `csv:"is_direct_procurement"`
	IsRoundAmount         int     `csv:"is_round_amount"`
	SuspiciousTiming      int     `csv:"suspicious_timing"`
	SupplierAwardCount    int     `csv:"supplier_award_count"`
	NewSupplierDirectDeal int     `csv:"new_supplier_direct_deal"`
	RiskScore             float64 `csv:"risk_score"`
	RiskLabel             int     `csv:"risk_label"`
	SupplierID            string  `csv:"supplier_id"`
	SupplierName          string  `csv:"supplier_name"`
}

func toV1(r model.FeatureRecord) v1Row {
	return v1Row{
		Amount:              r.Amount,
		IsDirectProcurement: r.IsDirectProcurement,
		IsRoundAmount:       r.IsRoundAmount,
		MissingDataCount:    r.MissingDataCount,
		RiskScore:           r.RiskScore,
		RiskLabel:           r.RiskLabel,
	}
}

func fromV1(r v1Row) model.FeatureRecord {
	return model.FeatureRecord{
		Amount:              r.Amount,
		IsDirectProcurement: r.IsDirectProcurement,
		IsRoundAmount:       r.IsRoundAmount,
		MissingDataCount:    r.MissingDataCount,
		RiskScore:           r.RiskScore,
		RiskLabel:           r.RiskLabel,
	}
}

func toV2(r model.FeatureRecord) v2Row {
	return v2Row{
		Amount:                r.Amount,
		IsDirectProcurement:   r.IsDirectProcurement,
		IsRoundAmount:         r.IsRoundAmount,
		SuspiciousTiming:      r.SuspiciousTiming,
		SupplierAwardCount:    r.SupplierAwardCount,
		NewSupplierDirectDeal: r.NewSupplierDirectDeal,
		RiskScore:             r.RiskScore,
		RiskLabel:             r.RiskLabel,
	}
}

func fromV2(r v2Row) model.FeatureRecord {
	return model.FeatureRecord{
		Amount:                r.Amount,
		IsDirectProcurement:   r.IsDirectProcurement,
		IsRoundAmount:         r.IsRoundAmount,
		SuspiciousTiming:      r.SuspiciousTiming,
		SupplierAwardCount:    r.SupplierAwardCount,
		NewSupplierDirectDeal: r.NewSupplierDirectDeal,
		RiskScore:             r.RiskScore,
		RiskLabel:             r.RiskLabel,
	}
}

func toV3(r model.FeatureRecord) v3Row {
	return v3Row{
		Amount:                r.Amount,
		IsDirectProcurement:   r.IsDirectProcurement,
		IsRoundAmount:         r.IsRoundAmount,
		SuspiciousTiming:      r.SuspiciousTiming,
		SupplierAwardCount:    r.SupplierAwardCount,
		NewSupplierDirectDeal: r.NewSupplierDirectDeal,
		RiskScore:             r.RiskScore,
		RiskLabel:             r.RiskLabel,
		SupplierID:            r.SupplierID,
		SupplierName:          r.SupplierName,
	}
}

func fromV3(r v3Row) model.FeatureRecord {
	return model.FeatureRecord{
		Amount:                r.Amount,
		IsDirectProcurement:   r.IsDirectProcurement,
		IsRoundAmount:         r.IsRoundAmount,
		SuspiciousTiming:      r.SuspiciousTiming,
		SupplierAwardCount:    r.SupplierAwardCount,
		NewSupplierDirectDeal: r.NewSupplierDirectDeal,
		RiskScore:             r.RiskScore,
		RiskLabel:             r.RiskLabel,
		SupplierID:            r.SupplierID,
		SupplierName:          r.SupplierName,
	}
}

// StageCSV encodes the feature table of v into a temp file beside
// dir/FileName(v). The current snapshot stays in place until the returned
// file is committed.
func StageCSV(dir string, v model.Version, records []model.FeatureRecord) (*Staged, error) {
	path := filepath.Join(dir, FileName(v))
	return stage(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		enc := csvutil.NewEncoder(w)
		enc.Register(func(f float64) ([]byte, error) {
			return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
		})

		var err error
		switch v {
		case model.V1:
			err = encodeRows(enc, records, toV1)
		case model.V2:
			err = encodeRows(enc, records, toV2)
		case model.V3:
			err = encodeRows(enc, records, toV3)
		default:
			err = eris.Errorf("unknown version %d", int(v))
		}
		if err != nil {
			return eris.Wrapf(err, "store: encode %s", path)
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return eris.Wrapf(err, "store: flush %s", path)
		}
		return nil
	})
}

func encodeRows[T any](enc *csvutil.Encoder, records []model.FeatureRecord, conv func(model.FeatureRecord) T) error {
	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		return err
	}
	for _, r := range records {
		if err := enc.Encode(conv(r)); err != nil {
			return err
		}
	}
	return nil
}

// ReadCSV reads a feature table written by StageCSV. Every output column of
// v must be present in the header.
func ReadCSV(path string, v model.Version) ([]model.FeatureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, eris.Errorf("store: %s is empty", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read header of %s", path)
	}
	dec.DisallowMissingColumns = true

	var out []model.FeatureRecord
	switch v {
	case model.V1:
		out, err = decodeRows(dec, fromV1)
	case model.V2:
		out, err = decodeRows(dec, fromV2)
	case model.V3:
		out, err = decodeRows(dec, fromV3)
	default:
		err = eris.Errorf("unknown version %d", int(v))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: decode %s", path)
	}
	return out, nil
}

func decodeRows[T any](dec *csvutil.Decoder, conv func(T) model.FeatureRecord) ([]model.FeatureRecord, error) {
	var out []model.FeatureRecord
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv(row))
	}
}
