package domain

type ResultKind string

const (
	KindWeb    ResultKind = "web"
	KindNews   ResultKind = "news"
	KindImages ResultKind = "images"
	KindVideos ResultKind = "videos"
)

func (k ResultKind) IsValid() bool {
	switch k {
	case KindWeb, KindNews, KindImages, KindVideos:
		return true
	}
	return false
}

func (k ResultKind) String() string { return string(k) }

func AllKinds() []ResultKind {
	return []ResultKind{KindWeb, KindNews, KindImages, KindVideos}
}

type Engine string

const (
	EngineDuckDuckGo Engine = "duckduckgo"
	EngineBing       Engine = "bing"
	EngineGoogle     Engine = "google"
)

func (e Engine) String() string { return string(e) }

// движки по kind, первый - дефолтный
var catalogue = map[ResultKind][]Engine{
	KindWeb:    {EngineDuckDuckGo, EngineBing, EngineGoogle},
	KindNews:   {EngineBing, EngineDuckDuckGo},
	KindImages: {EngineDuckDuckGo, EngineBing, EngineGoogle},
	KindVideos: {EngineDuckDuckGo},
}

// Engines returns the supported engines for kind, default first.
func Engines(kind ResultKind) []Engine {
	src := catalogue[kind]
	out := make([]Engine, len(src))
	copy(out, src)
	return out
}

func DefaultEngine(kind ResultKind) Engine {
	if engines := catalogue[kind]; len(engines) > 0 {
		return engines[0]
	}
	return ""
}

func (e Engine) SupportedFor(kind ResultKind) bool {
	for _, candidate := range catalogue[kind] {
		if candidate == e {
			return true
		}
	}
	return false
}
