// Package mimetypes 根据对象键的扩展名推断 Content-Type 与 Content-Encoding.
//
// 映射表是进程内只读的静态数据，不读取系统的 mime.types，保证在不同机器上结果一致.
//
// Example:
//
//	typ, enc := mimetypes.Guess("site/app.js.gz")
//	// typ = "application/javascript", *enc = "gzip"
package mimetypes

import "strings"

// Unknown 无法识别扩展名时使用的类型.
const Unknown = "application/octet-stream"

// Guess 返回 key 对应的 MIME 类型和可选的编码.
// 类型无法识别时返回 Unknown；编码只在扩展名为压缩后缀时返回.
func Guess(key string) (mimeType string, encoding *string) {
	typ, enc := Lookup(key)
	if typ == "" {
		typ = Unknown
	}

	return typ, enc
}

// Lookup 与 Guess 相同，但类型无法识别时返回空字符串.
func Lookup(key string) (mimeType string, encoding *string) {
	base, ext := splitExt(key)

	// .tgz -> .tar.gz 等别名展开
	for {
		alias, ok := suffixMap[strings.ToLower(ext)]
		if !ok {
			break
		}

		base, ext = splitExt(base + alias)
	}

	if enc, ok := encodingsMap[ext]; ok {
		encoding = &enc
		base, ext = splitExt(base)
	}

	return lookupType(ext), encoding
}

// lookupType 先区分大小写查找，再按小写查找；标准表优先于常见非标准表.
func lookupType(ext string) string {
	if ext == "" {
		return ""
	}

	for _, table := range []map[string]string{typesMap, commonTypesMap} {
		if t, ok := table[ext]; ok {
			return t
		}

		if t, ok := table[strings.ToLower(ext)]; ok {
			return t
		}
	}

	return ""
}

// splitExt 拆分出最后一个路径分量中的扩展名，基名开头的点不视为扩展名（如 ".bashrc"）.
func splitExt(p string) (base, ext string) {
	name := p[strings.LastIndex(p, "/")+1:]

	dot := strings.LastIndex(name, ".")
	if dot <= 0 || strings.Trim(name[:dot], ".") == "" {
		return p, ""
	}

	cut := len(p) - (len(name) - dot)

	return p[:cut], p[cut:]
}
