// Package model holds the data types shared across the acquisition and
// translation engine: queries, results, wanted items, jobs, and the scoring
// vocabulary.
package model

import "time"

// SubtitleFormat is the closed set of subtitle container formats the
// engine understands.
type SubtitleFormat string

const (
	FormatASS     SubtitleFormat = "ass"
	FormatSSA     SubtitleFormat = "ssa"
	FormatSRT     SubtitleFormat = "srt"
	FormatVTT     SubtitleFormat = "vtt"
	FormatUnknown SubtitleFormat = "unknown"
)

// MatchKind is a member of the closed vocabulary the scoring function
// reasons about. Never extend this set ad hoc — a provider that cannot
// honestly assert one of these should simply omit it.
type MatchKind string

const (
	MatchHash            MatchKind = "hash"
	MatchSeries          MatchKind = "series"
	MatchTitle           MatchKind = "title"
	MatchYear            MatchKind = "year"
	MatchSeason          MatchKind = "season"
	MatchEpisode         MatchKind = "episode"
	MatchReleaseGroup    MatchKind = "release_group"
	MatchSource          MatchKind = "source"
	MatchAudioCodec      MatchKind = "audio_codec"
	MatchResolution      MatchKind = "resolution"
	MatchHearingImpaired MatchKind = "hearing_impaired"
)

// ItemType distinguishes an episode query/item from a movie one.
type ItemType string

const (
	ItemEpisode ItemType = "episode"
	ItemMovie   ItemType = "movie"
)

// SubtitleType distinguishes a full subtitle track from a forced one.
type SubtitleType string

const (
	SubtitleFull   SubtitleType = "full"
	SubtitleForced SubtitleType = "forced"
)

// FormatFilter restricts a search to a subtitle format family.
type FormatFilter string

const (
	FormatFilterNone FormatFilter = ""
	FormatFilterASS  FormatFilter = "ass"
	FormatFilterSRT  FormatFilter = "srt"
)

// VideoQuery is the unit of search intent. Exactly one of (Season/Episode)
// or Title (with no episode) is populated — see Valid.
type VideoQuery struct {
	FilePath     string
	FileSize     int64
	ContentHash  string
	Title        string
	Year         int
	SeriesTitle  string
	Season       int
	Episode      int
	AbsEpisode   int
	EpisodeTitle string

	IMDbID        string
	TMDbID        string
	TVDBID        string
	AniDBID       string
	AniDBEpisode  int
	AniListID     string

	ReleaseGroup string
	Source       string
	Resolution   string
	AudioCodec   string

	Languages  []string
	ForcedOnly bool
}

// IsEpisode reports whether the query names an episode (season+episode set).
func (q VideoQuery) IsEpisode() bool {
	return q.Season > 0 && q.Episode > 0
}

// IsMovie reports whether the query names a movie (title only, no episode).
func (q VideoQuery) IsMovie() bool {
	return q.Title != "" && !q.IsEpisode()
}

// Valid enforces the episode-xor-movie invariant: a query identifies
// exactly one of the two.
func (q VideoQuery) Valid() bool {
	return q.IsEpisode() != q.IsMovie()
}

// Category returns the scoring category this query belongs to.
func (q VideoQuery) Category() ItemType {
	if q.IsEpisode() {
		return ItemEpisode
	}
	return ItemMovie
}

// HasLanguage reports whether lang is among the query's requested languages.
func (q VideoQuery) HasLanguage(lang string) bool {
	for _, l := range q.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// SubtitleResult is one hit from one provider, identified by
// (ProviderName, SubtitleID).
type SubtitleResult struct {
	ProviderName string
	SubtitleID   string

	Language       string
	Format         SubtitleFormat
	Filename       string
	DownloadURL    string
	Content        []byte // nil until Download succeeds
	ReleaseInfo    string
	HearingImpaired bool
	Forced         bool
	FPS            float64
	UploaderBonus  int // 0-20, pre-filled by the one provider that tracks uploader trust

	Matches          map[MatchKind]struct{}
	Score            int
	MachineTranslated bool
	MTConfidence     float64

	ProviderData map[string]any
}

// IsASS reports whether the result's format is ASS or SSA.
func (r SubtitleResult) IsASS() bool {
	return r.Format == FormatASS || r.Format == FormatSSA
}

// DisplayName is a human-readable label for logs and UIs.
func (r SubtitleResult) DisplayName() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.ProviderName + "/" + r.SubtitleID
}

// HasMatch reports whether the result asserts the given match kind.
func (r SubtitleResult) HasMatch(k MatchKind) bool {
	_, ok := r.Matches[k]
	return ok
}

// FormatRank orders formats for tie-breaking: ASS > SSA > SRT > VTT > UNKNOWN.
func FormatRank(f SubtitleFormat) int {
	switch f {
	case FormatASS:
		return 4
	case FormatSSA:
		return 3
	case FormatSRT:
		return 2
	case FormatVTT:
		return 1
	default:
		return 0
	}
}

// WantedStatus is the lifecycle state of a WantedItem.
type WantedStatus string

const (
	WantedPending   WantedStatus = "wanted"
	WantedIgnored   WantedStatus = "ignored"
	WantedFailed    WantedStatus = "failed"
	WantedCompleted WantedStatus = "completed"
)

// WantedItem is a persistent work row: "this media file is missing a
// subtitle in this language". Unique on (FilePath, TargetLanguage, SubtitleType).
type WantedItem struct {
	ID   int64
	Type ItemType

	SeriesID  string
	EpisodeID string
	MovieID   string

	Title          string
	SeasonEpisode  string
	FilePath       string
	ExistingSubPath string

	MissingLanguages []string
	Status           WantedStatus

	LastSearch    time.Time
	AttemptCount  int
	LastError     string

	TargetLanguage string
	SubtitleType   SubtitleType
}

// JobStatus is the lifecycle state of a translation Job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a translation work item tracked by the job queue.
type Job struct {
	ID          string
	FilePath    string
	Force       bool
	Context     map[string]any
	OutputPath  string
	Stats       map[string]any
	Error       string
	ConfigFingerprint string
	Status      JobStatus
	QueuedAt    time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ScoringCategory is episode or movie — the two keys of the weight table.
type ScoringCategory = ItemType

// ScoringWeights is the (category, match kind) -> weight table.
// DefaultWeights returns the hard-coded authoritative starting point;
// overrides are merged by the provider manager.
type ScoringWeights map[ScoringCategory]map[MatchKind]int

// FormatBonusTable is the ASS/SSA format bonus, keyed by category.
type FormatBonusTable map[ScoringCategory]int

// DefaultWeights is the built-in weight table.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		ItemEpisode: {
			MatchHash:            359,
			MatchSeries:          180,
			MatchYear:            90,
			MatchSeason:          30,
			MatchEpisode:         30,
			MatchReleaseGroup:    14,
			MatchSource:          7,
			MatchAudioCodec:      3,
			MatchResolution:      2,
			MatchHearingImpaired: 1,
		},
		ItemMovie: {
			MatchHash:            119,
			MatchTitle:           60,
			MatchYear:            30,
			MatchReleaseGroup:    13,
			MatchSource:          7,
			MatchAudioCodec:      3,
			MatchResolution:      2,
			MatchHearingImpaired: 1,
		},
	}
}

// DefaultFormatBonus is the built-in ASS/SSA format bonus table.
func DefaultFormatBonus() FormatBonusTable {
	return FormatBonusTable{
		ItemEpisode: 50,
		ItemMovie:   50,
	}
}

// BlacklistEntry marks a (provider, subtitle) pair as never to be reused.
type BlacklistEntry struct {
	ProviderName string
	SubtitleID   string
	Reason       string
	CreatedAt    time.Time
}
