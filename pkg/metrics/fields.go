package metrics

// Well-known field names of the entity metrics hash.
const (
	FieldPostsCount        = "posts_count"
	FieldTotalLikes        = "total_likes"
	FieldTotalShares       = "total_shares"
	FieldTotalComments     = "total_comments"
	FieldTotalViews        = "total_views"
	FieldAvgEngagementRate = "avg_engagement_rate"

	FieldAvgSentiment      = "avg_sentiment"
	FieldSentimentPositive = "sentiment_positive"
	FieldSentimentNeutral  = "sentiment_neutral"
	FieldSentimentNegative = "sentiment_negative"

	FieldLastActive  = "last_active"
	FieldLastUpdated = "last_updated"
)

// AllFields lists every well-known field. Callers may use arbitrary field
// names; this set exists for snapshot subsets and comparisons.
var AllFields = []string{
	FieldPostsCount,
	FieldTotalLikes,
	FieldTotalShares,
	FieldTotalComments,
	FieldTotalViews,
	FieldAvgEngagementRate,
	FieldAvgSentiment,
	FieldSentimentPositive,
	FieldSentimentNeutral,
	FieldSentimentNegative,
	FieldLastActive,
	FieldLastUpdated,
}
