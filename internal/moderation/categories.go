package moderation

import "github.com/whisper/moderator/internal/verdict"

// Built-in offense categories and the verdict each reports on a match.
// Word lists for these are fetched from the remote list source; only
// inclusive_safety ships with a seed list.
var DefaultCategories = []Definition{
	{Category: "homophobia", OnMatch: verdict.HumanReview},
	{Category: "jesus", OnMatch: verdict.HumanReview},
	{Category: "racism", OnMatch: verdict.Ban},
	{Category: "suicide", OnMatch: verdict.HumanReview},
	{Category: "swearing", OnMatch: verdict.Hide},
	{Category: "tappouhkaus", OnMatch: verdict.Ban},
	{Category: "fatphobia", OnMatch: verdict.Ban},
	{Category: "inclusive_safety", OnMatch: verdict.HumanReview, Seed: inclusiveSafetySeed},
	{Category: "sexual_violence", OnMatch: verdict.HumanReview},
	{Category: "sexual_harassment", OnMatch: verdict.HumanReview},
	{Category: "pannaaks", OnMatch: verdict.HumanReview},
	{Category: "boy", OnMatch: verdict.Ban},
}

// LookupCategory returns the built-in definition for name.
func LookupCategory(name string) (Definition, bool) {
	for _, d := range DefaultCategories {
		if d.Category == name {
			return d, true
		}
	}
	return Definition{}, false
}

var inclusiveSafetySeed = []string{
	// homophobia
	"homo", "lesbo", "pervo", "hintti", "kurja", "tuhlaajapoika",
	"sukupuolihäiriö", "et oo ihminen", "turpakii", "gay", "queer",
	"biphobia", "transphobia",
	// racism
	"neekeri", "ulkomaalainen", "mustalainen", "arjalainen", "musta",
	"ruisku", "racial slur", "xenophobia", "ethnic cleansing", "stereotype",
	// suicide and mental health
	"itsemurha", "tapa itsesi", "kuolema", "apua", "toivoton", "masennus",
	"itsensä vahingoittaminen", "paha olo", "viiltää", "syrjäytyminen",
	"crazy", "insane", "mental case", "messed up", "depression", "anxiety",
	"panic", "therapy", "counseling",
	// swearing and aggression
	"perkele", "helvetti", "vittu", "paskaa", "saatana", "haista", "kusi",
	"tuhota", "hyökkäys", "väkivalta", "satuttaa", "ampua", "tappaa",
	"f***", "sh*t", "b*tch", "d*ck",
	// body shaming
	"fat", "obese", "chubby", "overweight", "ugly", "disgusting", "lame",
	"skinny", "too thin", "too big", "paksu", "lihava", "olet ruma",
	"fatphobia", "body shaming", "weight shaming",
	// misogyny
	"bitch", "slut", "whore", "feminazi", "hysteria", "pussy",
	"naisen paikka", "misogyny", "sexism", "mansplaining", "objectify",
	// xenophobia
	"immigrant", "foreigner", "refugee", "alien", "non-native",
	"cultural appropriation", "ethnic slurs", "othering",
	"cultural theft", "mocking culture", "stereotypes", "exotic",
	"white savior", "tokenism",
	// religious extremism
	"fanatic", "extremist", "cult", "indoctrination", "holy war",
	"intolerance", "proselytizing",
	// trolling and cyberbullying
	"troll", "harassment", "bully", "nettirosvo", "cyberbully", "doxxing",
	"threat", "intimidation",
	"middle finger", "🖕", "screw you", "buzz off", "bye felicia",
}
