package models

// Requests for the risk HTTP endpoints. Defined in domain for consistency and reuse.

// Holding is one position of a submitted portfolio.
type Holding struct {
	Ticker string  `json:"ticker" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0,lte=1.05"`
}

// PredictRequest is the body of POST /api/v1/risk/predict.
type PredictRequest struct {
	Name          string    `json:"name" validate:"required"`
	ReportingDate string    `json:"reporting_date" validate:"required"`
	Holdings      []Holding `json:"holdings" validate:"required,min=1,dive"`
}

// WeightSum returns the total submitted weight.
func (r PredictRequest) WeightSum() float64 {
	total := 0.0
	for _, h := range r.Holdings {
		total += h.Weight
	}
	return total
}

// Weights converts the holdings list to a WeightMap.
func (r PredictRequest) Weights() WeightMap {
	w := make(WeightMap, len(r.Holdings))
	for _, h := range r.Holdings {
		w[h.Ticker] = h.Weight
	}
	return w
}

// PanelRequest is the query of GET /api/v1/panel.
type PanelRequest struct {
	Limit int `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}

// FoldsRequest is the query of GET /api/v1/panel/folds.
type FoldsRequest struct {
	K     int `query:"k" json:"k" default:"5" validate:"gte=1,lte=20"`
	Limit int `query:"limit" json:"limit" default:"10000" validate:"gte=2,lte=100000"`
}

// PanelRebuildRequest is the body of POST /api/v1/panel/rebuild.
type PanelRebuildRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=256"`
}
