package models

import (
	"regexp"
	"strings"
)

// ContentFetchPlaceholder replaces a body that could not be fetched
const ContentFetchPlaceholder = "Error fetching content"

// ExcerptLength is the number of characters kept in an article excerpt
const ExcerptLength = 100

var htmlTagRegex = regexp.MustCompile(`</?[^>]+(>|$)`)

// Article is a read-only snapshot of an article record held by the contract
type Article struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
	Price       string `json:"price"`     // ETH
	PriceWei    string `json:"price_wei"` // base-10 wei
	IsFree      bool   `json:"is_free"`
	Author      string `json:"author"`
}

// PaymentAmount returns the ETH amount a purchase of this article must carry.
// Free articles always cost zero regardless of the stored price.
func (a *Article) PaymentAmount() string {
	if a.IsFree || a.Price == "" {
		return "0"
	}
	return a.Price
}

// AuthoredBy reports whether address is the article author (case-insensitive)
func (a *Article) AuthoredBy(address string) bool {
	return address != "" && strings.EqualFold(a.Author, address)
}

// ArticleWithContent is an article together with its pinned body
type ArticleWithContent struct {
	Article
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// NewArticleWithContent attaches the body and derives the excerpt
func NewArticleWithContent(article Article, content string) ArticleWithContent {
	return ArticleWithContent{
		Article: article,
		Content: content,
		Excerpt: Excerpt(content, ExcerptLength),
	}
}

// ArticleList is the article index split into free and premium tabs
type ArticleList struct {
	Count    int                  `json:"count"`
	Articles []ArticleWithContent `json:"articles"`
	Free     []ArticleWithContent `json:"free"`
	Premium  []ArticleWithContent `json:"premium"`
}

// NewArticleList partitions articles by their free flag, preserving order
func NewArticleList(articles []ArticleWithContent) *ArticleList {
	list := &ArticleList{
		Count:    len(articles),
		Articles: articles,
		Free:     make([]ArticleWithContent, 0),
		Premium:  make([]ArticleWithContent, 0),
	}
	if list.Articles == nil {
		list.Articles = make([]ArticleWithContent, 0)
	}
	for _, a := range articles {
		if a.IsFree {
			list.Free = append(list.Free, a)
		} else {
			list.Premium = append(list.Premium, a)
		}
	}
	return list
}

// Excerpt strips HTML tags and truncates to length characters
func Excerpt(content string, length int) string {
	stripped := htmlTagRegex.ReplaceAllString(content, "")
	runes := []rune(stripped)
	if len(runes) > length {
		return string(runes[:length]) + "..."
	}
	return stripped
}

// ShortAddress renders 0x1234...abcd
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// Profile lists the articles written by one wallet
type Profile struct {
	Address      string               `json:"address"`
	DisplayName  string               `json:"display_name"`
	ArticleCount int                  `json:"article_count"`
	Articles     []ArticleWithContent `json:"articles"`
}
