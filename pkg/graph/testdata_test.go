package graph

import "testing"

// sampleJSON is the demo document the explorer starts with
const sampleJSON = `{
  "i0001_ivo_hdr_weekly": ["i0001_ivo_hdr_daily", "i0001_ivo_hdr_daily"],
  "i0002_ivo_dtl_weekly": ["i0002_ivo_dtl_daily"],
  "i1146_pnr_gfc_daily": ["i1147_gfc_tns"],
  "i1146_pnr_gfc_weekly": ["i1147_gfc_tns"],
  "i1148_lws_gfc_weekly": ["i1147_gfc_tns", "i1148_lws_gfc_daily"],
  "i1147_gfc_tns_weekly": ["i1148_lws_gfc_weekly"],
  "i1607_i1769_recycle_daily_dag": ["i1607_i1769_inc_daily_dag"],
  "i1608_pra_not_rvu_ivo_tnd_mf_daily": ["i0675_acu_bus_crd_ivo_daily_dag"],
  "i1608_pra_not_rvu_ivo_tnd_talend": ["i1608_pra_not_rvu_ivo_tnd_mf_daily", "i1608_pra_not_rvu_ivo_tnd_weekly"]
}`

// mustIndex decodes and builds an index, failing the test on error
func mustIndex(t testing.TB, doc string) *Index {
	t.Helper()
	d, err := DecodeJSON([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	idx, err := Build(d)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}
