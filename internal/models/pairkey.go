package models

// PairKey 返回无序用户对的规范键：两个 ID 排序后以下划线拼接，
// 因此 PairKey(a,b)==PairKey(b,a)，插入顺序不影响落点。
// Match 与 Thread 的主键均由此生成，配合 create-if-absent 消除双写竞态。
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "pair_" + a + "_" + b
}

// SortPair 按规范顺序返回两个 ID。
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
