package pipeline

import (
	"time"

	"github.com/reachlab/creator-scout/internal/model"
	"github.com/reachlab/creator-scout/pkg/youtube"
)

// fuseCount prefers the scraped value when it is non-zero; zero means
// the UI element was missing or unparseable, so the API fills the gap.
func fuseCount(scraped, api int64) model.Count {
	if scraped != 0 {
		return model.Count{Value: scraped, Source: model.SourceScraped}
	}
	if api != 0 {
		return model.Count{Value: api, Source: model.SourceAPI}
	}
	return model.Count{}
}

// pickString takes the scraped value when present, else the API's.
func pickString(scraped, api string) string {
	if scraped != "" {
		return scraped
	}
	return api
}

// dedupStrings removes exact duplicates, preserving first-seen order.
func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FuseChannel merges an API channel resource with a scraped about-page
// extraction. Identity and text/link fields come from the scrape when
// present; description and metadata come from the API; counts follow
// fuseCount. The merge is pure: identical inputs yield identical
// records.
func FuseChannel(api *youtube.Channel, scraped *model.ChannelExtraction, scrapedAt time.Time) model.CreatorRecord {
	rec := model.CreatorRecord{ScrapedAt: scrapedAt}

	if scraped != nil {
		rec.ChannelID = scraped.ChannelID
		rec.ChannelURL = scraped.ChannelURL
		rec.AboutText = scraped.AboutText
		rec.SocialLinks = dedupStrings(scraped.SocialLinks)
		rec.Websites = dedupStrings(scraped.Websites)
		rec.Emails = dedupStrings(scraped.Emails)
		rec.SampleVideos = scraped.SampleVideos
	}
	if len(rec.Emails) > 0 {
		rec.ContactEmail = rec.Emails[0]
	}

	var apiSubs, apiVideos, apiViews int64
	if api != nil {
		if rec.ChannelID == "" {
			rec.ChannelID = api.ID
		}
		rec.ChannelName = api.Snippet.Title
		rec.Description = api.Snippet.Description
		apiSubs = api.Statistics.Subscribers()
		apiVideos = api.Statistics.Videos()
		apiViews = api.Statistics.Views()
	}
	if rec.ChannelURL == "" && rec.ChannelID != "" {
		rec.ChannelURL = "https://www.youtube.com/channel/" + rec.ChannelID
	}

	var scrapedSubs int64
	if scraped != nil {
		scrapedSubs = scraped.SubscriberCount
	}
	rec.Subscribers = fuseCount(scrapedSubs, apiSubs)
	rec.VideoCount = fuseCount(0, apiVideos)
	rec.ViewCount = fuseCount(0, apiViews)

	switch {
	case api != nil && scraped != nil:
		rec.ExtractionPath = "api+scrape"
	case api != nil:
		rec.ExtractionPath = "api"
	default:
		rec.ExtractionPath = "scrape"
	}
	return rec
}

// FuseVideo merges a scraped watch-page extraction with API video and
// channel resources. Scraped fields win; the API only fills gaps.
func FuseVideo(scraped *model.VideoExtraction, api *youtube.Video, channel *youtube.Channel, scrapedAt time.Time) model.VideoRecord {
	rec := model.VideoRecord{ScrapedAt: scrapedAt}

	var apiViews, apiLikes, apiComments int64
	var apiSnippet youtube.VideoSnippet
	if api != nil {
		rec.VideoID = api.ID
		apiSnippet = api.Snippet
		apiViews = api.Statistics.Views()
		apiLikes = api.Statistics.Likes()
		apiComments = api.Statistics.Comments()
	}

	if scraped != nil {
		rec.VideoID = pickString(scraped.VideoID, rec.VideoID)
		rec.Title = pickString(scraped.Title, apiSnippet.Title)
		rec.Description = pickString(scraped.Description, apiSnippet.Description)
		rec.UploadDate = pickString(scraped.UploadDate, apiSnippet.PublishedAt)
		rec.DurationSeconds = scraped.DurationSeconds
		rec.IsLive = scraped.IsLive
		rec.Category = scraped.Category
		rec.ChannelID = pickString(scraped.ChannelID, apiSnippet.ChannelID)
		rec.ChannelName = pickString(scraped.ChannelName, apiSnippet.ChannelTitle)
		rec.ChannelURL = scraped.ChannelURL
		rec.ChannelHandle = scraped.ChannelHandle
		rec.BusinessEmail = scraped.BusinessEmail
		rec.SocialLinks = dedupStrings(scraped.SocialLinks)
		rec.ContactSource = scraped.ContactSource
		if len(scraped.Tags) > 0 {
			rec.Tags = scraped.Tags
		} else {
			rec.Tags = apiSnippet.Tags
		}
		rec.ViewCount = fuseCount(scraped.ViewCount, apiViews)
		rec.LikeCount = fuseCount(scraped.LikeCount, apiLikes)
		rec.CommentCount = fuseCount(scraped.CommentCount, apiComments)
	} else {
		rec.Title = apiSnippet.Title
		rec.Description = apiSnippet.Description
		rec.UploadDate = apiSnippet.PublishedAt
		rec.ChannelID = apiSnippet.ChannelID
		rec.ChannelName = apiSnippet.ChannelTitle
		rec.Tags = apiSnippet.Tags
		rec.ViewCount = fuseCount(0, apiViews)
		rec.LikeCount = fuseCount(0, apiLikes)
		rec.CommentCount = fuseCount(0, apiComments)
	}

	if rec.ChannelURL == "" && rec.ChannelID != "" {
		rec.ChannelURL = "https://www.youtube.com/channel/" + rec.ChannelID
	}

	if channel != nil {
		rec.ChannelSubscribers = fuseCount(0, channel.Statistics.Subscribers())
		rec.ChannelVideoCount = fuseCount(0, channel.Statistics.Videos())
		rec.ChannelViewCount = fuseCount(0, channel.Statistics.Views())
		if rec.ChannelName == "" {
			rec.ChannelName = channel.Snippet.Title
		}
	}

	switch {
	case api != nil && scraped != nil:
		rec.ExtractionPath = "api+scrape"
	case api != nil:
		rec.ExtractionPath = "api"
	default:
		rec.ExtractionPath = "scrape"
	}
	return rec
}
