package m3u8

/* Package m3u8 implements the playlist side of an HLS client: it turns M3U8
text into the level, fragment and rendition model that the rest of the
player works on.

HLS (HTTP Live Streaming) playlists come in two flavours, described in
[IETF RFC8216][rfc8216] and its follow-up drafts [rfc8216bis].

A multivariant (master) playlist lists variant streams with
EXT-X-STREAM-INF and alternative renditions with EXT-X-MEDIA.
ParseMasterPlaylist returns one Level per variant, in order of
appearance, with its bitrate, resolution and codecs classified into audio
and video families. ParseMasterPlaylistMedia returns the AUDIO or
SUBTITLES renditions as MediaTrack values.

A media playlist lists the segments of one level. ParseLevelPlaylist scans
it once, front to back, and returns LevelDetails with an ordered Fragment
sequence. While scanning it keeps the running state a player needs:
cumulative start times, media sequence numbers, discontinuity counters,
byte ranges that continue from the previous fragment, the encryption key
currently in force and program date times, which are carried forward from
dated fragments and back-filled for the fragments before the first one.

Parsing is deliberately strict where a player cannot continue: a missing
#EXTM3U header, a master playlist without variants and a media playlist
without a target duration all produce errors instead of defaults.

Fragmented MP4 playlists without EXT-X-MAP get a placeholder init segment
and NeedSidxRanges set. Once the first bytes of that resource are fetched,
ParseSegmentIndex and LevelDetails.ApplySegmentIndex fill in the byte
ranges from its sidx box.

A parsed level can be written back with LevelDetails.Encode. Tags the
parser did not interpret are kept in each fragment's TagList and echoed in
order.

Example of parsing a media playlist:

	details, err := m3u8.ParseLevelPlaylist(text, "https://example.com/live/index.m3u8", 0, m3u8.LevelTypeMain, 0)
	if err != nil {
		return err
	}
	for _, frag := range details.Fragments {
		fmt.Println(frag.SN, frag.Start, frag.URL())
	}

[rfc8216]: https://tools.ietf.org/html/rfc8216
[rfc8216bis]: https://tools.ietf.org/html/draft-pantos-rfc8216bis
*/
