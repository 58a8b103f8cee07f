package model

// Rating is one row of a quality-control ratings table.
type Rating struct {
	Subject   string  `json:"subject" yaml:"subject"`
	RaterID   string  `json:"rater_id" yaml:"rater_id"`
	TimeSec   float64 `json:"time_sec" yaml:"time_sec"`
	Rating    float64 `json:"rating" yaml:"rating"`
	Artifacts string  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Comments  string  `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// RatingSummary aggregates the ratings of one modality.
type RatingSummary struct {
	Modality   string   `json:"modality" yaml:"modality"`
	Rater      string   `json:"rater" yaml:"rater"`
	Count      int      `json:"count" yaml:"count"`
	TotalSec   float64  `json:"total_sec" yaml:"total_sec"`
	AverageSec float64  `json:"average_sec" yaml:"average_sec"`
	Mean       float64  `json:"mean" yaml:"mean"`
	Std        float64  `json:"std" yaml:"std"`
	Threshold  float64  `json:"threshold" yaml:"threshold"`
	Excluded   []Rating `json:"excluded" yaml:"excluded"`
}
