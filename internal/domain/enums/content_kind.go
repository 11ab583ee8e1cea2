package enums

type ContentKind string

const (
	ContentKindVideo    ContentKind = "video"
	ContentKindPhoto    ContentKind = "photo"
	ContentKindDocument ContentKind = "document"
	ContentKindAudio    ContentKind = "audio"
	ContentKindVoice    ContentKind = "voice"
	ContentKindSticker  ContentKind = "sticker"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentKindVideo, ContentKindPhoto, ContentKindDocument,
		ContentKindAudio, ContentKindVoice, ContentKindSticker:
		return true
	}
	return false
}
