package domain

// ParameterName is a recognized tracking query-string key.
type ParameterName string

// Standard campaign keys
const (
	UTMSource          ParameterName = "utm_source"
	UTMMedium          ParameterName = "utm_medium"
	UTMCampaign        ParameterName = "utm_campaign"
	UTMTerm            ParameterName = "utm_term"
	UTMContent         ParameterName = "utm_content"
	UTMID              ParameterName = "utm_id"
	UTMSourcePlatform  ParameterName = "utm_source_platform"
	UTMCreativeFormat  ParameterName = "utm_creative_format"
	UTMMarketingTactic ParameterName = "utm_marketing_tactic"
)

// Platform click identifiers
const (
	GoogleClickID    ParameterName = "gclid"
	FacebookClickID  ParameterName = "fbclid"
	DisplayClickID   ParameterName = "dclid"
	MicrosoftClickID ParameterName = "msclkid"
)

// Email marketing identifiers
const (
	MailchimpCampaignID ParameterName = "mc_cid"
	MailchimpEmailID    ParameterName = "mc_eid"
)

type ParameterGroup string

const (
	GroupCampaign          ParameterGroup = "campaign"
	GroupClickID           ParameterGroup = "click_id"
	GroupMarketingPlatform ParameterGroup = "marketing_platform"
)

// Group reports which partition of the catalog a name belongs to.
func (n ParameterName) Group() ParameterGroup {
	switch n {
	case GoogleClickID, FacebookClickID, DisplayClickID, MicrosoftClickID:
		return GroupClickID
	case MailchimpCampaignID, MailchimpEmailID:
		return GroupMarketingPlatform
	default:
		return GroupCampaign
	}
}

// TimestampKey is the sibling key holding the capture time of n.
func (n ParameterName) TimestampKey() string {
	return string(n) + "_timestamp"
}

// CriticalParameters must all be present for an attributable visit.
var CriticalParameters = []ParameterName{UTMSource, UTMMedium, UTMCampaign}

// Catalog is an ordered, duplicate-free list of recognized names.
type Catalog struct {
	names []ParameterName
	index map[ParameterName]int
}

// NewCatalog keeps the first occurrence of each name.
func NewCatalog(names ...ParameterName) Catalog {
	c := Catalog{index: make(map[ParameterName]int, len(names))}
	for _, name := range names {
		if _, dup := c.index[name]; dup {
			continue
		}
		c.index[name] = len(c.names)
		c.names = append(c.names, name)
	}
	return c
}

// DefaultCatalog is every recognized name in declared order.
var DefaultCatalog = NewCatalog(
	UTMSource,
	UTMMedium,
	UTMCampaign,
	UTMTerm,
	UTMContent,
	UTMID,
	UTMSourcePlatform,
	UTMCreativeFormat,
	UTMMarketingTactic,
	GoogleClickID,
	FacebookClickID,
	DisplayClickID,
	MicrosoftClickID,
	MailchimpCampaignID,
	MailchimpEmailID,
)

func (c Catalog) Names() []ParameterName {
	out := make([]ParameterName, len(c.names))
	copy(out, c.names)
	return out
}

func (c Catalog) Len() int {
	return len(c.names)
}

func (c Catalog) Contains(name ParameterName) bool {
	_, ok := c.index[name]
	return ok
}

// Group returns the sub-catalog of names in g, preserving order.
func (c Catalog) Group(g ParameterGroup) Catalog {
	var names []ParameterName
	for _, name := range c.names {
		if name.Group() == g {
			names = append(names, name)
		}
	}
	return NewCatalog(names...)
}
