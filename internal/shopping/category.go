package shopping

import (
	"regexp"
	"strings"

	"example.com/ai-meal-planner/backend/internal/models"
)

var pantryMeasures = []string{
	"大さじ", "小さじ", "少々", "適量", "少量", "たっぷり", "ひとつまみ",
	"tbsp", "tablespoon", "tsp", "teaspoon", "pinch", "to taste", "a little", "plenty", "dash",
}

type categoryRule struct {
	category models.ShoppingCategory
	// японские ключи ищутся подстрокой, английские по границам слов
	keywords []string
	words    *regexp.Regexp
}

func newRule(category models.ShoppingCategory, keywords ...string) categoryRule {
	rule := categoryRule{category: category}
	words := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if isASCII(keyword) {
			words = append(words, regexp.QuoteMeta(keyword))
			continue
		}
		rule.keywords = append(rule.keywords, keyword)
	}
	if len(words) > 0 {
		rule.words = regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)(?:e?s)?\b`)
	}
	return rule
}

func (r categoryRule) matches(name string) bool {
	for _, keyword := range r.keywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return r.words != nil && r.words.MatchString(name)
}

// Order matters: the first matching rule wins. Compound seasonings go first
// because their names contain staple or fruit keywords (米酢, りんご酢).
var categoryRules = []categoryRule{
	newRule(models.CategorySeasoning, "米酢", "黒酢", "穀物酢", "りんご酢", "ポン酢", "すし酢", "米油", "料理酒", "ナンプラー",
		"rice vinegar", "cider vinegar", "rice wine", "fish sauce"),
	newRule(models.CategoryMeat, "肉", "ささみ", "ひき肉", "ベーコン", "ハム", "ソーセージ", "レバー",
		"chicken", "beef", "pork", "bacon", "ham", "sausage", "turkey"),
	newRule(models.CategoryFish, "鮭", "さけ", "サーモン", "鯖", "さば", "まぐろ", "ツナ", "たら", "えび", "いか", "たこ", "あさり", "しらす", "魚",
		"salmon", "tuna", "cod", "shrimp", "fish"),
	newRule(models.CategorySoy, "豆腐", "納豆", "油揚げ", "厚揚げ", "豆乳", "おから",
		"tofu", "natto", "soy milk", "edamame"),
	newRule(models.CategoryEggDairy, "卵", "たまご", "牛乳", "ヨーグルト", "チーズ", "バター", "生クリーム",
		"egg", "milk", "yogurt", "cheese", "butter"),
	newRule(models.CategoryFruit, "バナナ", "りんご", "みかん", "いちご", "キウイ", "ベリー", "レモン", "グレープフルーツ",
		"banana", "apple", "berry", "berries", "lemon", "orange"),
	newRule(models.CategoryVegetable, "キャベツ", "玉ねぎ", "たまねぎ", "にんじん", "人参", "トマト", "ブロッコリー", "ほうれん草", "小松菜", "ねぎ",
		"きのこ", "しめじ", "えのき", "もやし", "ピーマン", "なす", "じゃがいも", "かぼちゃ", "大根", "レタス", "きゅうり",
		"しょうが", "生姜", "にんにく", "大葉", "パセリ", "バジル", "アボカド", "野菜",
		"onion", "carrot", "tomato", "broccoli", "spinach", "garlic", "ginger", "lettuce", "basil", "parsley",
		"eggplant", "cabbage", "potato", "avocado"),
	newRule(models.CategoryStaple, "米", "ごはん", "ご飯", "玄米", "オートミール", "パン", "うどん", "そば", "パスタ", "麺", "もち",
		"rice", "bread", "pasta", "noodle", "oat", "oatmeal"),
	newRule(models.CategorySeasoning, "塩", "こしょう", "胡椒", "醤油", "しょうゆ", "味噌", "みそ", "みりん", "酒", "砂糖", "酢", "油", "ごま油",
		"オリーブオイル", "だし", "ソース", "ケチャップ", "マヨネーズ",
		"salt", "pepper", "soy sauce", "miso", "sugar", "vinegar", "oil", "sauce"),
}

// Categorize определяет категорию покупки; меры «по вкусу» имеют приоритет над названием.
func Categorize(name, amount string) models.ShoppingCategory {
	lowerAmount := strings.ToLower(amount)
	for _, token := range pantryMeasures {
		if strings.Contains(lowerAmount, token) {
			return models.CategoryPantry
		}
	}

	lowerName := strings.ToLower(strings.TrimSpace(name))
	for _, rule := range categoryRules {
		if rule.matches(lowerName) {
			return rule.category
		}
	}

	return models.CategoryOther
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
