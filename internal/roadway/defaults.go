package roadway

// Defaults returns the built-in roadway records in classification priority order.
// Credentials and the report image path come from the environment and are left empty here.
func Defaults() []Roadway {
	return []Roadway{
		{
			Key: Route28,
			Rules: Rules{
				Patterns:         []string{`\b(ROUTE|RT|US|STATE ROUTE|PA)[ -]?28\b`},
				Number:           "28",
				NumberExclusions: []string{"228", "128", "286", "328", "428", "528"},
				Excludes:         []string{"BUS"},
			},
			Prompts: append([]string(nil), route28Prompts...),
			ReportTemplate: "🚨 Monthly Crash Report for {{.Month}} {{.Year}}:\n" +
				"There were {{.Count}} car crashes detected on or near Route 28 in {{.Month}}.\n" +
				"#Pittsburgh #Traffic #Route28 #PennDOT #MonthlyReport",
			Hashtags: defaultHashtags,
			Emojis:   defaultEmojis,
			Files: Files{
				Seen:    "seen_crashes_route28.json",
				Prompts: "last_prompts_route28.json",
				Monthly: "monthly_crash_data_route28.json",
			},
		},
		{
			Key: ParkwayEast,
			Rules: Rules{
				Patterns: []string{`VET(\w*) BRIDGE`},
				Aliases: []string{
					"FT PITT TUNNEL", "FORT PITT TUNNEL", "FT PITT TUN",
					"279", "I-279", "376", "I-376", "579", "I-579",
					"PARKWAY", "PARKWAY EAST", "PARKWAY NORTH", "PARKWAY WEST",
					"PARKWAY E", "PARKWAY N", "PARKWAY W",
					"LIBERTY BRIDGE", "LIBERTY BR",
				},
				Excludes: []string{"BUS"},
			},
			Prompts: append([]string(nil), parkwayEastPrompts...),
			ReportTemplate: "🚗 Monthly Crash Report for {{.Month}} {{.Year}}:\n" +
				"There were {{.Count}} car crashes detected on or near the Parkways in {{.Month}}.\n" +
				"#Pittsburgh #Traffic #Parkway #PennDOT #MonthlyReport",
			Hashtags: defaultHashtags,
			Emojis:   defaultEmojis,
			Files: Files{
				Seen:    "seen_crashes_parkwayeast.json",
				Prompts: "last_prompts_parkwayeast.json",
				Monthly: "monthly_crash_data_parkwayeast.json",
			},
		},
	}
}

const defaultHashtags = "#Pittsburgh #Traffic #PennDOT"

var defaultEmojis = Emojis{Intro: "🚨", Location: "📍", ReportedAt: "⌚"}

var route28Prompts = []string{
	"Guess what? Another crash on Route 28!",
	"Reset the 'Days Since Last Crash on Route 28' counter to zero.",
	"Route 28 is at it again. A crash has been reported.",
	"If you had 'Crash on Route 28' on your bingo card, congratulations.",
	"Oh look, a surprise Route 28 traffic jam. Kidding, it's just a crash.",
	"Sound the alarms! A crash has been spotted on Route 28.",
	"You know the drill. Another crash on Route 28.",
	"Crashy McCrash Face just entered Route 28.",
	"Just when you thought your day couldn't get more exciting, Route 28 delivers another crash.",
	"Breaking news: The asphalt on Route 28 has once again decided to engage in an unscheduled demolition derby.",
	"Feeling nostalgic for the good old days? Don't worry, Route 28 just recreated a classic crash scene for you.",
	"My therapist told me to embrace predictability. So, naturally, I looked for a crash on Route 28.",
	"Yinz see that new crash on Route 28 n'at?",
	"New crash on Route 28 dropped!",
	"Route 28: Where fender-benders go to become full-time careers.",
	"The Route 28 crash report just hit the newsstands. Again.",
	"Route 28 statistics: 100% chance of existing, 90% chance of crashing.",
	"Warning: Route 28 may cause sudden stops, mild frustration, and existential dread.",
	"Route 28 just achieved its daily crash quota. Overachievers.",
	"Plot twist: Someone actually made it through Route 28 without crashing. Just kidding, there's been another crash.",
	"Route 28 crash investigators are considering opening a permanent office on-site.",
	"Today's Route 28 crash is brought to you by the letter 'C' and the number 'Why?'",
	"Route 28: Making GPS apps everywhere weep softly.",
	"The Route 28 crash betting pool is now accepting entries for tomorrow's incidents.",
	"Route 28 just achieved its personal best: three whole minutes without a crash.",
	"CMU Scientists baffled as Route 28 continues to attract metal objects like a magnetic disaster zone.",
	"Route 28 crash update: Yes, it happened. No, we're not surprised.",
	"Breaking: Local road continues to road badly.",
	"Route 28 has entered the chat. And immediately crashed.",
	"The Route 28 crash report is now available in audiobook format for your daily commute.",
	"Route 28: Now featuring premium crash experiences with extended wait times.",
	"Another day, another Route 28 crash. The road's consistency is truly admirable.",
	"Route 28 crashes have become so frequent, they're now classified as a renewable resource.",
	"Emergency services have installed a Route 28 crash hotline. It's just a recording that says 'We know.'",
	"Forget Netflix and chill, I'm just here for the live-action crash replays on Route 28.",
	"Route 28: Where GPS says 'In 500 feet, prepare to question all your life choices.'",
	"Heard a new band is forming: 'Route 28 & The Fender Benders.'",
}

var parkwayEastPrompts = []string{
	"Guess what? Another crash on the Parkway!",
	"Reset the 'Days Since Last Crash on the Parkway' counter to zero.",
	"The Parkway is at it again. A crash has been reported.",
	"If you had 'Crash on the Parkway' on your bingo card, congratulations.",
	"Oh look, a surprise Parkway traffic jam. Kidding, it's just a crash.",
	"Sound the alarms! A crash has been spotted on the Parkway.",
	"You know the drill. Another crash on the Parkway.",
	"Crashy McCrash Face just entered the Parkway.",
	"Just when you thought your day couldn't get more exciting, the Parkway delivers another crash.",
	"Breaking news: The asphalt on the Parkway has once again decided to engage in an unscheduled demolition derby.",
	"Feeling nostalgic for the good old days? Don't worry, the Parkway just recreated a classic crash scene for you.",
	"My therapist told me to embrace predictability. So, naturally, I looked for a crash on the Parkway.",
	"Yinz see that new crash on the Parkway n'at?",
	"New crash on the Parkway dropped!",
	"The Parkway just announced its latest limited-time offer: a complimentary traffic jam with every crash.",
	"Rumor has it, the Parkway is auditioning for the next 'Fast & Furious' movie. Lots of crashes, little progress.",
	"If life gives you lemons, you're probably stuck on the Parkway behind a crash.",
	"My doctor prescribed less stress, then I drove on the Parkway. It's a work in progress.",
	"Just spotted a rare phenomenon on the Parkway: a car *not* involved in a crash. Send pics!",
	"The Parkway's motto: 'We may not get you there fast, but we'll certainly make it memorable.'",
	"Is it just me, or does the Parkway have a personal vendetta against my commute time?",
}
