package wire

// Post is the logical unit a publisher pushes and a consumer receives: a
// header plus the raw bytes it carries. Round-trip law: for any Post p,
// DataFromPackets(PacketsFromPost(p, maxPayload)) == p.Data.
type Post struct {
	Info PostInfo
	Data []byte
}

// PacketsFromPost splits a Post's data into wire Packets.
func PacketsFromPost(p Post, maxPayload int) []Packet {
	return PacketsFromData(p.Info.ID, p.Data, maxPayload)
}

// PostFromPackets reassembles a Post from its header and its packets, which
// must already be in index order and end in exactly one final packet.
func PostFromPackets(info PostInfo, packets []Packet) Post {
	return Post{Info: info, Data: DataFromPackets(packets)}
}
