package message

// GiftImage is the image block of a catalog entry.
type GiftImage struct {
	URLList []string `json:"url_list"`
}

// GiftEntry is one gift of the room's gift catalog.
type GiftEntry struct {
	ID           int32     `json:"id"`
	Name         string    `json:"name"`
	DiamondCount int32     `json:"diamond_count"`
	Describe     string    `json:"describe"`
	Type         int32     `json:"type"`
	Image        GiftImage `json:"image"`
}

// Catalog is the room's gift catalog in server order.
type Catalog []GiftEntry

// Find returns the first entry whose id matches.
func (c Catalog) Find(id int32) (*GiftEntry, bool) {
	for i := range c {
		if c[i].ID == id {
			entry := c[i]
			return &entry, true
		}
	}
	return nil, false
}
