package review

import "encoding/json"

// GuideStatus reports whether the purchase guide was ready when the analysis returned.
type GuideStatus string

const (
	GuideReady      GuideStatus = "ready"
	GuideProcessing GuideStatus = "processing"
)

// UnmarshalJSON maps every value other than "processing" to GuideReady.
func (s *GuideStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = GuideReady
		return nil
	}
	if GuideStatus(raw) == GuideProcessing {
		*s = GuideProcessing
	} else {
		*s = GuideReady
	}
	return nil
}

// NeedsPolling reports whether the guide has to be fetched asynchronously.
func (s GuideStatus) NeedsPolling() bool {
	return s == GuideProcessing
}

// AnalysisResult is the synchronous part of a product analysis.
type AnalysisResult struct {
	ProductName      string            `json:"product_name"`
	YouTubeReviews   []ReviewCard      `json:"youtube_reviews"`
	CommunityReviews *CommunityReviews `json:"community_reviews"`
	GuideStatus      GuideStatus       `json:"purchase_guide_status"`
	PurchaseGuide    *PurchaseGuide    `json:"purchase_guide,omitempty"`
}

// ReviewCard is one analyzed YouTube review.
type ReviewCard struct {
	VideoID  string   `json:"video_id"`
	Title    string   `json:"title"`
	Analysis Analysis `json:"analysis"`
}

// Highlight is a notable quote with its position in the video.
type Highlight struct {
	Timestamp string `json:"timestamp"`
	Quote     string `json:"quote"`
}

// StructuredAnalysis holds the pros and cons extracted from one video.
type StructuredAnalysis struct {
	Pros      []string   `json:"pros"`
	Cons      []string   `json:"cons"`
	Highlight *Highlight `json:"highlight,omitempty"`
}

// Analysis is either a StructuredAnalysis or free text.
type Analysis struct {
	Structured *StructuredAnalysis
	Text       string
}

// IsStructured reports whether the structured variant is set.
func (a Analysis) IsStructured() bool { return a.Structured != nil }

func (a *Analysis) UnmarshalJSON(data []byte) error {
	var s StructuredAnalysis
	text, ok, err := decodeVariant(data, &s)
	if err != nil {
		return err
	}
	if ok {
		a.Structured, a.Text = &s, ""
	} else {
		a.Structured, a.Text = nil, text
	}
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	if a.Structured != nil {
		return json.Marshal(a.Structured)
	}
	return json.Marshal(a.Text)
}

// CommunityReviews summarizes forum posts collected by the backend.
type CommunityReviews struct {
	Summary  *CommunitySummary `json:"summary"`
	RawCount int               `json:"raw_count"`
	Source   string            `json:"source,omitempty"`
	Note     string            `json:"note,omitempty"`
}

// CommunityPoints is the structured form of a community summary.
type CommunityPoints struct {
	Pros   []string `json:"pros"`
	Cons   []string `json:"cons"`
	Quotes []string `json:"quotes,omitempty"`
}

// CommunitySummary is either CommunityPoints or free text.
type CommunitySummary struct {
	Structured *CommunityPoints
	Text       string
}

// IsStructured reports whether the structured variant is set.
func (c CommunitySummary) IsStructured() bool { return c.Structured != nil }

func (c *CommunitySummary) UnmarshalJSON(data []byte) error {
	var p CommunityPoints
	text, ok, err := decodeVariant(data, &p)
	if err != nil {
		return err
	}
	if ok {
		c.Structured, c.Text = &p, ""
	} else {
		c.Structured, c.Text = nil, text
	}
	return nil
}

func (c CommunitySummary) MarshalJSON() ([]byte, error) {
	if c.Structured != nil {
		return json.Marshal(c.Structured)
	}
	return json.Marshal(c.Text)
}

// GuideDetails is the structured form of a purchase guide.
type GuideDetails struct {
	RecommendFor    []string `json:"recommend_for"`
	NotRecommendFor []string `json:"not_recommend_for"`
	Summary         string   `json:"summary,omitempty"`
}

// PurchaseGuide is either GuideDetails or free text.
type PurchaseGuide struct {
	Structured *GuideDetails
	Text       string
}

// IsStructured reports whether the structured variant is set.
func (g PurchaseGuide) IsStructured() bool { return g.Structured != nil }

func (g *PurchaseGuide) UnmarshalJSON(data []byte) error {
	var d GuideDetails
	text, ok, err := decodeVariant(data, &d)
	if err != nil {
		return err
	}
	if ok {
		g.Structured, g.Text = &d, ""
	} else {
		g.Structured, g.Text = nil, text
	}
	return nil
}

func (g PurchaseGuide) MarshalJSON() ([]byte, error) {
	if g.Structured != nil {
		return json.Marshal(g.Structured)
	}
	return json.Marshal(g.Text)
}
