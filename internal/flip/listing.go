package flip

// Listing is one normalized market listing. The upstream response nests
// these deeply and names the days-on-market figure inconsistently;
// normalization happens once in the market client.
type Listing struct {
	PropertyID   string   `json:"property_id"`
	Status       string   `json:"status"`
	ListPrice    *int     `json:"list_price"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	StateCode    string   `json:"state_code"`
	PostalCode   string   `json:"postal_code"`
	Beds         *int     `json:"beds"`
	Baths        *float64 `json:"baths"`
	Sqft         *int     `json:"sqft"`
	DaysOnMarket *int     `json:"days_on_market"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	URL          string   `json:"url,omitempty"`
}
