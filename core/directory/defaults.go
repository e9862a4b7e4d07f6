package directory

// DefaultCategories are seeded on startup if missing
var DefaultCategories = []Category{
	{CategoryID: "sermon-prep", Name: "Sermon Preparation", Description: "Outlines, illustrations and exegesis for preaching", Icon: "book-open"},
	{CategoryID: "worship", Name: "Worship Planning", Description: "Service orders, song selection and liturgy", Icon: "music"},
	{CategoryID: "youth-ministry", Name: "Youth Ministry", Description: "Lessons, games and events for young people", Icon: "users"},
	{CategoryID: "pastoral-care", Name: "Pastoral Care", Description: "Visitation, counseling and care notes", Icon: "heart"},
	{CategoryID: "outreach", Name: "Outreach", Description: "Evangelism, missions and community service", Icon: "globe"},
	{CategoryID: "small-groups", Name: "Small Groups", Description: "Discussion guides and study plans", Icon: "message-circle"},
	{CategoryID: "administration", Name: "Church Administration", Description: "Meetings, budgets and volunteer scheduling", Icon: "clipboard"},
	{CategoryID: "communications", Name: "Communications", Description: "Newsletters, announcements and social media", Icon: "megaphone"},
}
