// internal/workers/upsell/get-upsell-metadata/models.go
package getupsellmetadata

// Output uses camelCase keys like every other process variable.
type Output struct {
	Categories []string `json:"categories"`
	SiteTop    string   `json:"siteTop"`
	SiteSecond string   `json:"siteSecond"`
}
